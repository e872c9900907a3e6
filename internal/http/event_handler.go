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
	"github.com/example/availability-scheduler/internal/recurrence"
)

type eventService interface {
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, []application.ConflictWarning, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, []application.ConflictWarning, error)
	GetEvent(ctx context.Context, principal application.Principal, eventID string) (application.Event, error)
	DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error
	ListEvents(ctx context.Context, params application.ListEventsParams) ([]application.Event, []application.ConflictWarning, error)
	NextEventOccurrence(ctx context.Context, principal application.Principal, eventID string, after time.Time) (time.Time, bool, error)
}

type EventHandler struct {
	service   eventService
	responder responder
	now       func() time.Time
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{service: service, responder: newResponder(logger), now: time.Now}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	event, warnings, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderEvent(r.Context(), w, event, warnings, http.StatusCreated)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	event, warnings, err := h.service.UpdateEvent(r.Context(), application.UpdateEventParams{
		Principal: principal,
		EventID:   eventID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderEvent(r.Context(), w, event, warnings, http.StatusOK)
}

// Get renders one event. When both start and end query parameters are
// supplied the response also carries the number of occurrences inside that
// window; next_occurrence is always computed relative to the current time.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	event, err := h.service.GetEvent(r.Context(), principal, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := eventDetailResponse{Event: toEventDTO(event)}

	if next, found, err := h.service.NextEventOccurrence(r.Context(), principal, eventID, h.now()); err == nil && found {
		formatted := next.UTC().Format(time.RFC3339Nano)
		payload.NextOccurrence = &formatted
	}

	query := r.URL.Query()
	start := parseQueryTime(query.Get("start"))
	end := parseQueryTime(query.Get("end"))
	if start != nil && end != nil {
		count := recurrence.CountOccurrences(event.Template(), *start, *end)
		payload.OccurrenceCount = &count
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteEvent(r.Context(), principal, eventID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params := buildEventListParams(r.URL.Query(), principal)

	events, warnings, err := h.service.ListEvents(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := listEventsResponse{
		Events:   toEventDTOs(events),
		Warnings: toWarningDTOs(warnings),
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

func (h *EventHandler) renderEvent(ctx context.Context, w http.ResponseWriter, event application.Event, warnings []application.ConflictWarning, status int) {
	payload := eventResponse{
		Event:    toEventDTO(event),
		Warnings: toWarningDTOs(warnings),
	}
	h.responder.writeJSON(ctx, w, status, payload)
}

type eventRequest struct {
	OrganizerID    string   `json:"organizer_id"`
	Title          string   `json:"title"`
	Description    *string  `json:"description"`
	Venue          *string  `json:"venue"`
	Start          string   `json:"start_time"`
	End            string   `json:"end_time"`
	IsRecurring    bool     `json:"is_recurring"`
	DayOfWeek      *int     `json:"day_of_week"`
	RecurrenceEnd  *string  `json:"recurrence_end_date"`
	ExceptionDates []string `json:"exception_dates"`
}

func (r eventRequest) toInput() application.EventInput {
	return application.EventInput{
		OrganizerID: strings.TrimSpace(r.OrganizerID),
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Venue:       r.Venue,
		Start:       parseTime(r.Start),
		End:         parseTime(r.End),
		Recurrence:  toRecurrenceInput(r.IsRecurring, r.DayOfWeek, r.RecurrenceEnd, r.ExceptionDates),
	}
}

func toRecurrenceInput(recurring bool, dayOfWeek *int, recurrenceEnd *string, exceptions []string) application.RecurrenceInput {
	input := application.RecurrenceInput{
		Recurring: recurring,
		DayOfWeek: dayOfWeek,
	}
	if recurrenceEnd != nil {
		if ts := parseDateOrTime(*recurrenceEnd); !ts.IsZero() {
			input.RecurrenceEnd = &ts
		}
	}
	for _, raw := range exceptions {
		if ts := parseDateOrTime(raw); !ts.IsZero() {
			input.ExceptionDates = append(input.ExceptionDates, ts)
		}
	}
	return input
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

// parseDateOrTime accepts either a full RFC 3339 timestamp or a bare
// calendar date, which is how recurrence end and exception dates are
// usually supplied.
func parseDateOrTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts := parseTime(value); !ts.IsZero() {
		return ts
	}
	if ts, err := time.Parse("2006-01-02", value); err == nil {
		return ts
	}
	return time.Time{}
}

func parseQueryTime(value string) *time.Time {
	if ts := parseTime(value); !ts.IsZero() {
		return &ts
	}
	return nil
}

type eventResponse struct {
	Event    eventDTO             `json:"event"`
	Warnings []conflictWarningDTO `json:"warnings,omitempty"`
}

type eventDetailResponse struct {
	Event           eventDTO `json:"event"`
	NextOccurrence  *string  `json:"next_occurrence,omitempty"`
	OccurrenceCount *int     `json:"occurrence_count,omitempty"`
}

type listEventsResponse struct {
	Events   []eventDTO           `json:"events"`
	Warnings []conflictWarningDTO `json:"warnings,omitempty"`
}

type eventDTO struct {
	ID             string   `json:"id"`
	OrganizerID    string   `json:"organizer_id"`
	Title          string   `json:"title"`
	Description    *string  `json:"description,omitempty"`
	Venue          *string  `json:"venue,omitempty"`
	Start          string   `json:"start_time"`
	End            string   `json:"end_time"`
	IsRecurring    bool     `json:"is_recurring"`
	DayOfWeek      *int     `json:"day_of_week,omitempty"`
	RecurrenceEnd  *string  `json:"recurrence_end_date,omitempty"`
	ExceptionDates []string `json:"exception_dates,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func toEventDTO(event application.Event) eventDTO {
	dto := eventDTO{
		ID:          event.ID,
		OrganizerID: event.OrganizerID,
		Title:       event.Title,
		Description: event.Description,
		Venue:       event.Venue,
		Start:       event.Start.UTC().Format(time.RFC3339Nano),
		End:         event.End.UTC().Format(time.RFC3339Nano),
		IsRecurring: event.Recurring,
		CreatedAt:   event.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   event.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if event.DayOfWeek != nil {
		day := int(*event.DayOfWeek)
		dto.DayOfWeek = &day
	}
	if event.RecurrenceEnd != nil {
		formatted := event.RecurrenceEnd.UTC().Format("2006-01-02")
		dto.RecurrenceEnd = &formatted
	}
	for _, exception := range event.ExceptionDates {
		dto.ExceptionDates = append(dto.ExceptionDates, exception.UTC().Format("2006-01-02"))
	}
	return dto
}

func toEventDTOs(events []application.Event) []eventDTO {
	if len(events) == 0 {
		return nil
	}
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	return out
}

type conflictWarningDTO struct {
	EventID     string  `json:"event_id"`
	Type        string  `json:"type"`
	OrganizerID string  `json:"organizer_id,omitempty"`
	Venue       *string `json:"venue,omitempty"`
}

func toWarningDTOs(warnings []application.ConflictWarning) []conflictWarningDTO {
	if len(warnings) == 0 {
		return nil
	}

	out := make([]conflictWarningDTO, 0, len(warnings))
	for _, warning := range warnings {
		dto := conflictWarningDTO{
			EventID:     warning.EventID,
			Type:        warning.Type,
			OrganizerID: warning.OrganizerID,
			Venue:       warning.Venue,
		}
		out = append(out, dto)
	}
	return out
}

func buildEventListParams(values url.Values, principal application.Principal) application.ListEventsParams {
	params := application.ListEventsParams{Principal: principal}

	if organizer := strings.TrimSpace(values.Get("organizer_id")); organizer != "" {
		params.OrganizerID = organizer
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
