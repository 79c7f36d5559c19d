package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDHeader is the header a generated request ID is echoed under, and
// the header a caller-supplied ID is read from if present.
const RequestIDHeader = "X-Request-Id"

// withRequestID stamps every request with a unique ID, generating one with
// google/uuid unless the caller already supplied one. The ID is attached to
// the request context so handler-level logging can carry it, and echoed back
// on the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDFrom extracts the ID withRequestID attached to ctx, or "" if none.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
