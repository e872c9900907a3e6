package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/availability-scheduler/internal/application"
)

type availabilityService interface {
	CreateSlot(ctx context.Context, params application.CreateAvailabilityParams) (application.AvailabilitySlot, error)
	UpdateSlot(ctx context.Context, params application.UpdateAvailabilityParams) (application.AvailabilitySlot, error)
	GetSlot(ctx context.Context, principal application.Principal, slotID string) (application.AvailabilitySlot, error)
	DeleteSlot(ctx context.Context, principal application.Principal, slotID string) error
	ListSlots(ctx context.Context, params application.ListAvailabilityParams) ([]application.AvailabilitySlot, error)
}

type AvailabilityHandler struct {
	service   availabilityService
	responder responder
}

func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, responder: newResponder(logger)}
}

func (h *AvailabilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	slot, err := h.service.CreateSlot(r.Context(), application.CreateAvailabilityParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, availabilityResponse{Slot: toAvailabilityDTO(slot)})
}

func (h *AvailabilityHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	slotID, ok := AvailabilityIDFromContext(r.Context())
	if !ok || strings.TrimSpace(slotID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAvailabilityID)
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	slot, err := h.service.UpdateSlot(r.Context(), application.UpdateAvailabilityParams{
		Principal: principal,
		SlotID:    slotID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{Slot: toAvailabilityDTO(slot)})
}

func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	slotID, ok := AvailabilityIDFromContext(r.Context())
	if !ok || strings.TrimSpace(slotID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAvailabilityID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	slot, err := h.service.GetSlot(r.Context(), principal, slotID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{Slot: toAvailabilityDTO(slot)})
}

func (h *AvailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	slotID, ok := AvailabilityIDFromContext(r.Context())
	if !ok || strings.TrimSpace(slotID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAvailabilityID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteSlot(r.Context(), principal, slotID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params := buildAvailabilityListParams(r.URL.Query(), principal)

	slots, err := h.service.ListSlots(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAvailabilityResponse{Slots: toAvailabilityDTOs(slots)})
}

type availabilityRequest struct {
	UserID         string   `json:"user_id"`
	Note           *string  `json:"note"`
	Start          string   `json:"start_time"`
	End            string   `json:"end_time"`
	IsRecurring    bool     `json:"is_recurring"`
	DayOfWeek      *int     `json:"day_of_week"`
	RecurrenceEnd  *string  `json:"recurrence_end_date"`
	ExceptionDates []string `json:"exception_dates"`
}

func (r availabilityRequest) toInput() application.AvailabilityInput {
	return application.AvailabilityInput{
		UserID:     strings.TrimSpace(r.UserID),
		Note:       r.Note,
		Start:      parseTime(r.Start),
		End:        parseTime(r.End),
		Recurrence: toRecurrenceInput(r.IsRecurring, r.DayOfWeek, r.RecurrenceEnd, r.ExceptionDates),
	}
}

type availabilityResponse struct {
	Slot availabilityDTO `json:"availability"`
}

type listAvailabilityResponse struct {
	Slots []availabilityDTO `json:"availability"`
}

type availabilityDTO struct {
	ID             string   `json:"id"`
	UserID         string   `json:"user_id"`
	Note           *string  `json:"note,omitempty"`
	Start          string   `json:"start_time"`
	End            string   `json:"end_time"`
	IsRecurring    bool     `json:"is_recurring"`
	DayOfWeek      *int     `json:"day_of_week,omitempty"`
	RecurrenceEnd  *string  `json:"recurrence_end_date,omitempty"`
	ExceptionDates []string `json:"exception_dates,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func toAvailabilityDTO(slot application.AvailabilitySlot) availabilityDTO {
	dto := availabilityDTO{
		ID:          slot.ID,
		UserID:      slot.UserID,
		Note:        slot.Note,
		Start:       slot.Start.UTC().Format(time.RFC3339Nano),
		End:         slot.End.UTC().Format(time.RFC3339Nano),
		IsRecurring: slot.Recurring,
		CreatedAt:   slot.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   slot.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if slot.DayOfWeek != nil {
		day := int(*slot.DayOfWeek)
		dto.DayOfWeek = &day
	}
	if slot.RecurrenceEnd != nil {
		formatted := slot.RecurrenceEnd.UTC().Format("2006-01-02")
		dto.RecurrenceEnd = &formatted
	}
	for _, exception := range slot.ExceptionDates {
		dto.ExceptionDates = append(dto.ExceptionDates, exception.UTC().Format("2006-01-02"))
	}
	return dto
}

func toAvailabilityDTOs(slots []application.AvailabilitySlot) []availabilityDTO {
	if len(slots) == 0 {
		return nil
	}
	out := make([]availabilityDTO, 0, len(slots))
	for _, slot := range slots {
		out = append(out, toAvailabilityDTO(slot))
	}
	return out
}

func buildAvailabilityListParams(values url.Values, principal application.Principal) application.ListAvailabilityParams {
	params := application.ListAvailabilityParams{Principal: principal}

	if userID := strings.TrimSpace(values.Get("user_id")); userID != "" {
		params.UserID = userID
	}

	params.Start = parseQueryTime(values.Get("start"))
	params.End = parseQueryTime(values.Get("end"))

	if day := strings.TrimSpace(values.Get("day")); day != "" {
		if ts, err := time.Parse("2006-01-02", day); err == nil {
			params.Period = application.ListPeriodDay
			params.PeriodReference = ts
		}
	} else if week := strings.TrimSpace(values.Get("week")); week != "" {
		if ts, err := time.Parse("2006-01-02", week); err == nil {
			params.Period = application.ListPeriodWeek
			params.PeriodReference = ts
		}
	} else if month := strings.TrimSpace(values.Get("month")); month != "" {
		if ts, err := time.Parse("2006-01", month); err == nil {
			params.Period = application.ListPeriodMonth
			params.PeriodReference = ts
		}
	}

	return params
}
