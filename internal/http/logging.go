package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/speednet/internal/logging"
)

// pathLogKeys maps route wildcards to the keys their values are logged under.
var pathLogKeys = [...]struct{ wildcard, key string }{
	{"sessionID", "session_id"},
	{"signupID", "signup_id"},
	{"cardID", "card_id"},
}

// operationLogger scopes a handler's records to the operation being served.
// The zero value logs through slog.Default.
type operationLogger struct {
	handler string
	base    *slog.Logger
}

func newOperationLogger(handler string, logger *slog.Logger) operationLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return operationLogger{handler: handler, base: logger}
}

func (l operationLogger) fallback() *slog.Logger {
	if l.base == nil {
		return slog.Default()
	}
	return l.base
}

// forRequest prefers the request logger installed by the middleware chain and
// tags it with the operation, the matched route and the resource IDs in the path.
func (l operationLogger) forRequest(r *http.Request, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(r.Context())
	if logger == nil {
		logger = l.fallback()
	}

	pairs := make([]any, 0, 4+2*len(pathLogKeys)+len(attrs))
	if l.handler != "" {
		pairs = append(pairs, "handler", l.handler)
	}
	pairs = append(pairs, "operation", operation)
	if r.Pattern != "" {
		pairs = append(pairs, "route", r.Pattern)
	}
	for _, p := range pathLogKeys {
		if v := strings.TrimSpace(r.PathValue(p.wildcard)); v != "" {
			pairs = append(pairs, p.key, v)
		}
	}
	return logger.With(append(pairs, attrs...)...)
}
