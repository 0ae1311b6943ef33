package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bookline-dev/bookline/services/scheduling-service/internal/availability"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/booking"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/model"
)

// BookingHandler serves the guest-facing booking surface: availability
// lookups and the appointment lifecycle.
type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/slots", h.Slots)
	mux.HandleFunc("/v1/days", h.Days)
	mux.HandleFunc("/v1/appointments", h.Appointments)
	mux.HandleFunc("/v1/appointments/reschedule", h.Reschedule)
	mux.HandleFunc("/v1/appointments/cancel", h.Cancel)
}

type slotItem struct {
	StartTime string `json:"start_time"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
	bookingTypeID := strings.TrimSpace(r.URL.Query().Get("booking_type_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if agencyID == "" || bookingTypeID == "" || dateStr == "" {
		http.Error(w, "agency_id, booking_type_id and date are required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(availability.ISODate, dateStr)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	slots, err := h.svc.AvailableSlots(r.Context(), agencyID, bookingTypeID, date.Year(), date.Month(), date.Day())
	if err != nil {
		writeBookingError(w, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{StartTime: s.UTC().Format(time.RFC3339)})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Days(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
	bookingTypeID := strings.TrimSpace(r.URL.Query().Get("booking_type_id"))
	monthStr := strings.TrimSpace(r.URL.Query().Get("month"))
	if agencyID == "" || bookingTypeID == "" || monthStr == "" {
		http.Error(w, "agency_id, booking_type_id and month are required", http.StatusBadRequest)
		return
	}
	month, err := time.Parse("2006-01", monthStr)
	if err != nil {
		http.Error(w, "invalid month", http.StatusBadRequest)
		return
	}

	days, err := h.svc.AvailableDays(r.Context(), agencyID, bookingTypeID, month.Year(), month.Month())
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if days == nil {
		days = []string{}
	}
	writeJSON(w, http.StatusOK, days)
}

type bookRequest struct {
	AgencyID      string `json:"agency_id"`
	BookingTypeID string `json:"booking_type_id"`
	GuestName     string `json:"guest_name"`
	GuestEmail    string `json:"guest_email"`
	Timezone      string `json:"timezone"`
	StartTime     string `json:"start_time"`
}

type appointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	BookingTypeID string `json:"booking_type_id"`
	HostUserID    string `json:"host_user_id"`
	GuestName     string `json:"guest_name"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Timezone      string `json:"timezone"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID: a.ID,
		BookingTypeID: a.BookingTypeID,
		HostUserID:    a.HostUserID,
		GuestName:     a.GuestName,
		StartTime:     a.StartTime.UTC().Format(time.RFC3339),
		EndTime:       a.EndTime.UTC().Format(time.RFC3339),
		Timezone:      a.Timezone,
		Status:        a.Status,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.CancelledAt != nil {
		item.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

// Appointments handles POST (book) and GET (list) on /v1/appointments.
func (h *BookingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.book(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AgencyID = strings.TrimSpace(req.AgencyID)
	req.BookingTypeID = strings.TrimSpace(req.BookingTypeID)
	req.GuestName = strings.TrimSpace(req.GuestName)
	req.GuestEmail = strings.TrimSpace(req.GuestEmail)
	if req.AgencyID == "" || req.BookingTypeID == "" || req.GuestName == "" || req.GuestEmail == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Book(r.Context(), booking.BookRequest{
		AgencyID:      req.AgencyID,
		BookingTypeID: req.BookingTypeID,
		GuestName:     req.GuestName,
		GuestEmail:    req.GuestEmail,
		Timezone:      strings.TrimSpace(req.Timezone),
		Start:         start,
	})
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request) {
	agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
	if agencyID == "" {
		http.Error(w, "agency_id required", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.svc.List(r.Context(), agencyID, limit)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	writeJSON(w, http.StatusOK, items)
}

type rescheduleRequest struct {
	AgencyID      string `json:"agency_id"`
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time"`
	Timezone      string `json:"timezone"`
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AgencyID = strings.TrimSpace(req.AgencyID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AgencyID == "" || req.AppointmentID == "" {
		http.Error(w, "agency_id and appointment_id required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), req.AgencyID, req.AppointmentID, start, strings.TrimSpace(req.Timezone))
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

type cancelRequest struct {
	AgencyID      string `json:"agency_id"`
	AppointmentID string `json:"appointment_id"`
	CancelledBy   string `json:"cancelled_by"`
	Reason        string `json:"reason"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AgencyID = strings.TrimSpace(req.AgencyID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AgencyID == "" || req.AppointmentID == "" {
		http.Error(w, "agency_id and appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Cancel(r.Context(), req.AgencyID, req.AppointmentID, strings.TrimSpace(req.CancelledBy), strings.TrimSpace(req.Reason))
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}
