package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/availability"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
)

// AdminStore is the persistence surface for the agency configuration
// endpoints. Both the pgx store and the in-memory store satisfy it.
type AdminStore interface {
	CreateBookingType(ctx context.Context, bt model.BookingType) (model.BookingType, error)
	ListBookingTypes(ctx context.Context, agencyID string) ([]model.BookingType, error)
	WeeklySchedule(ctx context.Context, agencyID string) (*model.WeeklySchedule, error)
	UpsertWeeklySchedule(ctx context.Context, sched model.WeeklySchedule) error
	Members(ctx context.Context, agencyID string) ([]model.Member, error)
	UpsertMember(ctx context.Context, m model.Member) error
}

// AdminHandler serves agency-side configuration: booking types, the
// weekly schedule, and members.
type AdminHandler struct {
	store  AdminStore
	logger *slog.Logger
}

func NewAdminHandler(store AdminStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{store: store, logger: logger}
}

func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/admin/booking-types", h.BookingTypes)
	mux.HandleFunc("/v1/admin/schedule", h.Schedule)
	mux.HandleFunc("/v1/admin/members", h.Members)
}

type assignedHostItem struct {
	UserID   string `json:"user_id"`
	Priority int    `json:"priority"`
}

type bookingTypeRequest struct {
	AgencyID         string             `json:"agency_id"`
	Name             string             `json:"name"`
	DurationMinutes  int                `json:"duration_minutes"`
	BufferBeforeMins int                `json:"buffer_before_minutes"`
	BufferAfterMins  int                `json:"buffer_after_minutes"`
	MinNoticeHours   int                `json:"min_notice_hours"`
	MaxFutureDays    int                `json:"max_future_days"`
	IsActive         *bool              `json:"is_active"`
	HostUserID       string             `json:"host_user_id"`
	AssignedHosts    []assignedHostItem `json:"assigned_hosts"`
}

type bookingTypeItem struct {
	ID               string             `json:"id"`
	AgencyID         string             `json:"agency_id"`
	Name             string             `json:"name"`
	DurationMinutes  int                `json:"duration_minutes"`
	BufferBeforeMins int                `json:"buffer_before_minutes"`
	BufferAfterMins  int                `json:"buffer_after_minutes"`
	MinNoticeHours   int                `json:"min_notice_hours"`
	MaxFutureDays    int                `json:"max_future_days"`
	IsActive         bool               `json:"is_active"`
	HostUserID       string             `json:"host_user_id,omitempty"`
	AssignedHosts    []assignedHostItem `json:"assigned_hosts,omitempty"`
}

func toBookingTypeItem(bt model.BookingType) bookingTypeItem {
	item := bookingTypeItem{
		ID:               bt.ID,
		AgencyID:         bt.AgencyID,
		Name:             bt.Name,
		DurationMinutes:  bt.DurationMinutes,
		BufferBeforeMins: bt.BufferBeforeMins,
		BufferAfterMins:  bt.BufferAfterMins,
		MinNoticeHours:   bt.MinNoticeHours,
		MaxFutureDays:    bt.MaxFutureDays,
		IsActive:         bt.IsActive,
		HostUserID:       bt.HostUserID,
	}
	for _, hst := range bt.AssignedHosts {
		item.AssignedHosts = append(item.AssignedHosts, assignedHostItem{UserID: hst.UserID, Priority: hst.Priority})
	}
	return item
}

func (h *AdminHandler) BookingTypes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createBookingType(w, r)
	case http.MethodGet:
		h.listBookingTypes(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) createBookingType(w http.ResponseWriter, r *http.Request) {
	var req bookingTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AgencyID = strings.TrimSpace(req.AgencyID)
	req.Name = strings.TrimSpace(req.Name)
	if req.AgencyID == "" || req.Name == "" {
		http.Error(w, "agency_id and name required", http.StatusBadRequest)
		return
	}
	if req.DurationMinutes <= 0 {
		http.Error(w, "duration_minutes must be positive", http.StatusBadRequest)
		return
	}
	if req.BufferBeforeMins < 0 || req.BufferAfterMins < 0 || req.MinNoticeHours < 0 {
		http.Error(w, "buffers and notice must not be negative", http.StatusBadRequest)
		return
	}
	if req.MaxFutureDays <= 0 {
		http.Error(w, "max_future_days must be positive", http.StatusBadRequest)
		return
	}

	bt := model.BookingType{
		ID:               uuid.NewString(),
		AgencyID:         req.AgencyID,
		Name:             req.Name,
		DurationMinutes:  req.DurationMinutes,
		BufferBeforeMins: req.BufferBeforeMins,
		BufferAfterMins:  req.BufferAfterMins,
		MinNoticeHours:   req.MinNoticeHours,
		MaxFutureDays:    req.MaxFutureDays,
		IsActive:         req.IsActive == nil || *req.IsActive,
		HostUserID:       strings.TrimSpace(req.HostUserID),
	}
	for _, hst := range req.AssignedHosts {
		bt.AssignedHosts = append(bt.AssignedHosts, model.AssignedHost{UserID: hst.UserID, Priority: hst.Priority})
	}

	created, err := h.store.CreateBookingType(r.Context(), bt)
	if err != nil {
		h.logger.Error("booking type create failed", "err", err)
		http.Error(w, "failed to create booking type", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingTypeItem(created))
}

func (h *AdminHandler) listBookingTypes(w http.ResponseWriter, r *http.Request) {
	agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
	if agencyID == "" {
		http.Error(w, "agency_id required", http.StatusBadRequest)
		return
	}
	types, err := h.store.ListBookingTypes(r.Context(), agencyID)
	if err != nil {
		http.Error(w, "failed to list booking types", http.StatusInternalServerError)
		return
	}
	items := make([]bookingTypeItem, 0, len(types))
	for _, bt := range types {
		items = append(items, toBookingTypeItem(bt))
	}
	writeJSON(w, http.StatusOK, items)
}

type scheduleRequest struct {
	AgencyID string                    `json:"agency_id"`
	Timezone string                    `json:"timezone"`
	Days     map[string][]model.Period `json:"days"`
}

func (h *AdminHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.putSchedule(w, r)
	case http.MethodGet:
		h.getSchedule(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) putSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AgencyID = strings.TrimSpace(req.AgencyID)
	if req.AgencyID == "" {
		http.Error(w, "agency_id required", http.StatusBadRequest)
		return
	}

	sched := model.WeeklySchedule{
		AgencyID: req.AgencyID,
		Timezone: strings.TrimSpace(req.Timezone),
		Days:     req.Days,
	}
	if err := availability.ValidateSchedule(sched); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err := h.store.UpsertWeeklySchedule(r.Context(), sched); err != nil {
		h.logger.Error("schedule upsert failed", "err", err)
		http.Error(w, "failed to store schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, scheduleRequest{AgencyID: sched.AgencyID, Timezone: sched.Timezone, Days: sched.Days})
}

func (h *AdminHandler) getSchedule(w http.ResponseWriter, r *http.Request) {
	agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
	if agencyID == "" {
		http.Error(w, "agency_id required", http.StatusBadRequest)
		return
	}
	sched, err := h.store.WeeklySchedule(r.Context(), agencyID)
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	if sched == nil {
		http.Error(w, "no schedule configured", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, scheduleRequest{AgencyID: sched.AgencyID, Timezone: sched.Timezone, Days: sched.Days})
}

type memberRequest struct {
	AgencyID string `json:"agency_id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
}

type memberItem struct {
	UserID   string `json:"user_id"`
	AgencyID string `json:"agency_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func (h *AdminHandler) Members(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.upsertMember(w, r)
	case http.MethodGet:
		h.listMembers(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) upsertMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AgencyID = strings.TrimSpace(req.AgencyID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.Role = strings.TrimSpace(req.Role)
	if req.AgencyID == "" || req.UserID == "" {
		http.Error(w, "agency_id and user_id required", http.StatusBadRequest)
		return
	}
	switch req.Role {
	case model.RoleOwner, model.RoleHost, model.RoleStaff:
	default:
		http.Error(w, "role must be owner, host or staff", http.StatusBadRequest)
		return
	}

	m := model.Member{
		UserID:   req.UserID,
		AgencyID: req.AgencyID,
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Role:     req.Role,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if err := h.store.UpsertMember(r.Context(), m); err != nil {
		h.logger.Error("member upsert failed", "err", err)
		http.Error(w, "failed to store member", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, memberItem{
		UserID: m.UserID, AgencyID: m.AgencyID, Name: m.Name,
		Email: m.Email, Role: m.Role, IsActive: m.IsActive,
	})
}

func (h *AdminHandler) listMembers(w http.ResponseWriter, r *http.Request) {
	agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
	if agencyID == "" {
		http.Error(w, "agency_id required", http.StatusBadRequest)
		return
	}
	members, err := h.store.Members(r.Context(), agencyID)
	if err != nil {
		http.Error(w, "failed to list members", http.StatusInternalServerError)
		return
	}
	items := make([]memberItem, 0, len(members))
	for _, m := range members {
		items = append(items, memberItem{
			UserID: m.UserID, AgencyID: m.AgencyID, Name: m.Name,
			Email: m.Email, Role: m.Role, IsActive: m.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, items)
}
