package httptransport

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"bluecarbon/pkg/requestcontext"
)

const (
	headerRequestID = "X-Request-ID"
	headerActorID   = "X-Actor-ID"
)

// RequestContext seeds the request-scoped values every layer below reads:
// the request ID (propagated from the caller or generated), the actor, and
// the request clock. Fixing the clock once per request keeps a transition
// and its audit entry on the same instant.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())
		if actor := r.Header.Get(headerActorID); actor != "" {
			ctx = requestcontext.WithActorID(ctx, actor)
		}

		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
