package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"kinerja/pkg/requestcontext"
)

// requestContextMiddleware populates the request-scoped values the
// services and the audit recorder consume: correlation id, acting user,
// client metadata, and a single clock reading for the whole request.
//
// Actor identity comes from the X-Actor-ID header; authentication is the
// gateway's responsibility, this core trusts its perimeter.
func requestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)

		if actor, err := uuid.Parse(r.Header.Get("X-Actor-ID")); err == nil {
			ctx = requestcontext.WithActorID(ctx, actor)
		}
		if institution, err := uuid.Parse(r.Header.Get("X-Institution-ID")); err == nil {
			ctx = requestcontext.WithInstitutionID(ctx, institution)
		}

		ctx = requestcontext.WithClientMetadata(ctx, r.RemoteAddr, r.UserAgent())
		ctx = requestcontext.WithTime(ctx, time.Now())

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
