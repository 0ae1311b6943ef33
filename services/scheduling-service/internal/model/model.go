package model

import "time"

// Appointment status values. Confirmation is set by an upstream flow, the
// engine never promotes scheduled to confirmed itself.
const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// BookingType is a reusable meeting template owned by an agency.
//
// Host eligibility resolves in order: HostUserID when set, then
// AssignedHosts, then every active operational member of the agency.
type BookingType struct {
	ID               string
	AgencyID         string
	Name             string
	DurationMinutes  int
	BufferBeforeMins int
	BufferAfterMins  int
	MinNoticeHours   int
	MaxFutureDays    int
	IsActive         bool
	HostUserID       string
	AssignedHosts    []AssignedHost
	CreatedAt        time.Time
}

type AssignedHost struct {
	UserID   string
	Priority int
}

func (bt BookingType) Duration() time.Duration {
	return time.Duration(bt.DurationMinutes) * time.Minute
}

func (bt BookingType) BufferBefore() time.Duration {
	return time.Duration(bt.BufferBeforeMins) * time.Minute
}

func (bt BookingType) BufferAfter() time.Duration {
	return time.Duration(bt.BufferAfterMins) * time.Minute
}

func (bt BookingType) MinNotice() time.Duration {
	return time.Duration(bt.MinNoticeHours) * time.Hour
}

// Period is an open availability window within a day, "HH:MM" wall clock.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklySchedule is the agency's recurring weekly availability. Days maps
// lowercase English weekday names to ordered periods; a missing or empty
// day has no availability.
type WeeklySchedule struct {
	AgencyID string
	Timezone string
	Days     map[string][]Period
}

// Member is an agency member who can host appointments.
type Member struct {
	UserID   string
	AgencyID string
	Name     string
	Email    string
	Role     string
	IsActive bool
}

// Operational roles may be auto-assigned appointments when a booking type
// names no hosts.
const (
	RoleOwner = "owner"
	RoleHost  = "host"
	RoleStaff = "staff"
)

func (m Member) IsOperational() bool {
	return m.Role == RoleOwner || m.Role == RoleHost
}

// Appointment is the booking record. Rows are never deleted; cancellation
// is a status transition.
type Appointment struct {
	ID              string
	AgencyID        string
	BookingTypeID   string
	HostUserID      string
	GuestName       string
	GuestEmail      string
	StartTime       time.Time
	EndTime         time.Time
	Timezone        string
	Status          string
	ExternalEventID string
	CancelledAt     *time.Time
	CancelledBy     string
	CancelReason    string
	RescheduledAt   *time.Time
	CreatedAt       time.Time
}

func (a Appointment) IsCancelled() bool {
	return a.Status == StatusCancelled
}
