// Package http provides HTTP handlers and middleware for the scheduler API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}. Response:
//     {"token","expires_at","principal":{"user_id","role"}} with the token also
//     surfaced via the `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the current session token extracted from the
//     Authorization header or session cookie. Returns 204 No Content and clears the cookie.
//   - DELETE /sessions/{token}: administrator-only revocation of an arbitrary token.
//   - GET /users, POST /users, PUT /users/{id}, DELETE /users/{id}: administrator
//     controlled user management endpoints exchanging the `userDTO` payload defined in
//     user_handler.go.
//   - GET /events, POST /events, GET /events/{id}, PUT /events/{id}, DELETE /events/{id}:
//     event management endpoints exchanging the `eventDTO` payload defined in
//     event_handler.go. List responses carry conflict warnings, and when a time window
//     is requested (start/end or a day/week/month preset) recurring events are expanded
//     into concrete occurrences.
//   - GET /events/calendar.ics: the same expanded occurrences rendered as an iCalendar
//     feed; defaults to the current month when no window is given.
//   - GET /availability, POST /availability, GET /availability/{id}, PUT
//     /availability/{id}, DELETE /availability/{id}: availability slot endpoints
//     exchanging the `availabilityDTO` payload defined in availability_handler.go.
//     Members see only their own slots.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
