package middleware

import (
	"context"
	"net/http"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/responses"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/enums"
	pkgerrors "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/errors"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
)

type OperationChecker interface {
	Check(ctx context.Context, username string, op enums.Operation) (bool, error)
}

// RequireOperation filters requests through the authorization gate before
// executing the handler. Callers without the permission are denied; a failing
// role lookup surfaces as a dependency error, never a silent allow.
func RequireOperation(gate OperationChecker, op enums.Operation, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if gate == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "authorization gate unavailable"))
				return
			}

			username := UsernameFromContext(ctx)
			if username == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
				return
			}

			allowed, err := gate.Check(ctx, username, op)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if !allowed {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "operation not permitted"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
