package http

import (
	"context"
	"log/slog"

	"github.com/example/availability-scheduler/internal/application"
	"github.com/example/availability-scheduler/internal/logging"
)

type contextKey string

const (
	principalContextKey      contextKey = "principal"
	eventIDContextKey        contextKey = "event_id"
	availabilityIDContextKey contextKey = "availability_id"
	userIDContextKey         contextKey = "user_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithEventID injects the event identifier resolved from the request path.
func ContextWithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, eventIDContextKey, eventID)
}

// EventIDFromContext extracts an event identifier previously associated with the context.
func EventIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(eventIDContextKey).(string)
	return id, ok
}

// ContextWithAvailabilityID injects the availability slot identifier resolved from the request path.
func ContextWithAvailabilityID(ctx context.Context, slotID string) context.Context {
	return context.WithValue(ctx, availabilityIDContextKey, slotID)
}

// AvailabilityIDFromContext extracts a slot identifier previously associated with the context.
func AvailabilityIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(availabilityIDContextKey).(string)
	return id, ok
}

// ContextWithUserID injects the user identifier resolved from the request path.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts a user identifier previously associated with the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok
}

// ContextWithLogger returns a derived context carrying the request logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts the request logger attached to the context, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
