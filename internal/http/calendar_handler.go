package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/availability-scheduler/internal/application"
	"github.com/example/availability-scheduler/internal/ics"
)

// CalendarHandler serves event occurrences as an iCalendar feed.
type CalendarHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
	now       func() time.Time
}

func NewCalendarHandler(service eventService, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	return &CalendarHandler{service: service, responder: newResponder(base), logger: base, now: time.Now}
}

func (h *CalendarHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CalendarHandler", operation, attrs...)
}

// Export renders the expanded occurrences inside the requested window as an
// iCalendar document. Without explicit bounds or a period preset it defaults
// to the month containing the current time.
func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params := buildEventListParams(r.URL.Query(), principal)
	if params.Start == nil && params.End == nil && params.Period == application.ListPeriodNone {
		params.Period = application.ListPeriodMonth
		params.PeriodReference = h.now().UTC()
	}

	logger := h.log(r.Context(), "Export", "principal_id", principal.UserID)

	events, _, err := h.service.ListEvents(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "calendar export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := ics.BuildEventCalendar(events, h.now())

	logger.With("event_count", len(events)).InfoContext(r.Context(), "calendar exported")

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(payload)); err != nil {
		logger.ErrorContext(r.Context(), "failed to write calendar payload", "error", err)
	}
}
