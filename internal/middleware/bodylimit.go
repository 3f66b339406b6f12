package middleware

import (
	"net/http"
)

// DefaultMaxBodySize caps request bodies at 1MB. Intake profiles are the
// largest payload the API accepts and stay well under this.
const DefaultMaxBodySize = 1 << 20

// BodyLimitMiddleware rejects oversized request bodies before any handler
// reads them. A declared Content-Length over the cap gets an immediate 413;
// chunked bodies are cut off by MaxBytesReader mid-read.
type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && r.ContentLength > m.maxSize {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
			})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		next.ServeHTTP(w, r)
	})
}
