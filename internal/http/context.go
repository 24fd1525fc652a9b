package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/speednet/internal/application"
)

type contextKey string

const principalContextKey contextKey = "principal"

// Headers carrying the pre-authenticated caller. Authentication happens
// upstream; this service trusts them as given.
const (
	HeaderActorID      = "X-Actor-ID"
	HeaderWorkspaceIDs = "X-Workspace-IDs"
)

// ContextWithPrincipal returns a derived context containing the caller.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the caller from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// principalFromHeaders reads the caller from the scope headers. The
// workspace list is comma separated; blanks and repeats are dropped.
func principalFromHeaders(r *http.Request) (application.Principal, bool) {
	actor := strings.TrimSpace(r.Header.Get(HeaderActorID))
	if actor == "" {
		return application.Principal{}, false
	}

	var workspaces []string
	seen := make(map[string]struct{})
	for _, raw := range strings.Split(r.Header.Get(HeaderWorkspaceIDs), ",") {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		workspaces = append(workspaces, id)
	}
	return application.Principal{ActorID: actor, WorkspaceIDs: workspaces}, true
}
