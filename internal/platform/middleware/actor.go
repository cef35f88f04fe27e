package middleware

import (
	"log/slog"
	"net/http"

	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/platform/httputil"
	"esgledger/pkg/requestcontext"
)

// ActorHeader carries the directory user performing the request. Identity is
// asserted by the upstream gateway; this service does not authenticate.
const ActorHeader = "X-Actor-ID"

// GetActor retrieves the acting user from the context.
func GetActor(r *http.Request) id.UserID {
	return requestcontext.Actor(r.Context())
}

// RequireActor rejects requests without a usable X-Actor-ID header and stores
// the actor in the request context.
func RequireActor(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor, err := id.ParseUserID(r.Header.Get(ActorHeader))
			if err != nil {
				logger.WarnContext(ctx, "request rejected - missing actor",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "missing or invalid "+ActorHeader+" header"))
				return
			}
			ctx = requestcontext.WithActor(ctx, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
