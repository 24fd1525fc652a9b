// Package http exposes the session, signup and business card services over
// JSON.
//
// The router serves:
//   - GET /sessions, POST /sessions: list (query: companyId, status,
//     lookbackDays, upcoming) and create sessions.
//   - PATCH /sessions/{sessionID}: partial update; a "rotations" array
//     replaces the rotation set.
//   - POST /sessions/{sessionID}/rotations/regenerate: rebuild rotations with
//     optional startTime, sessionLengthMinutes and rotationDurationSeconds.
//   - GET /sessions/{sessionID}/runtime: live roster and active rotation.
//   - POST /sessions/{sessionID}/signups: public self-registration; no scope
//     headers required.
//   - PATCH /sessions/{sessionID}/signups/{signupID}: host-side signup update.
//   - GET /cards, POST /cards, PATCH /cards/{cardID}: business cards.
//   - GET /healthz and, when configured, GET /metrics.
//
// Host endpoints require the X-Actor-ID header; X-Workspace-IDs lists the
// workspaces the caller may act on; when it is absent the caller is unrestricted.
// Request bodies are decoded strictly: unknown fields are rejected with 400.
// Errors map to 422 (validation), 403 (scope), 404, 409 (conflict) and 500.
package http
