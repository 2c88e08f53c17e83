package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/josh-kwaku/bankcards-api/internal/handler"
	"github.com/josh-kwaku/bankcards-api/internal/logging"
)

// Recovery turns a handler panic into a 500. http.ErrAbortHandler is
// re-raised so the server can abort the connection as intended.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}
			logging.FromContext(r.Context()).Error("panic recovered", "error", err, "stack", string(debug.Stack()))
			handler.RespondAppError(w, handler.ErrInternalError, nil)
		}()
		next.ServeHTTP(w, r)
	})
}
