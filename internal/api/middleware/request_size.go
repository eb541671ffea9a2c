package middleware

import (
	"net/http"

	"github.com/campusevents/server/internal/api/problem"
)

// DefaultMaxBodySize applies when the configured limit is not positive.
const DefaultMaxBodySize int64 = 1 << 20

// RequestSize caps request bodies at maxBytes. Requests that announce a
// larger Content-Length are rejected up front with 413; bodies that lie
// about their length fail when the handler decodes them.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TitleTooLarge,
					"Request body too large", nil, "")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
