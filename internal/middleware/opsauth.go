package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wanderplan/trip-engine/internal/util"
)

// OpsAuthMiddleware guards operator endpoints with a bearer password checked
// against a bcrypt hash. With no hash configured, ops access is disabled
// outright rather than left open.
type OpsAuthMiddleware struct {
	passwordHash string
}

func NewOpsAuthMiddleware(passwordHash string) *OpsAuthMiddleware {
	return &OpsAuthMiddleware{passwordHash: passwordHash}
}

func (m *OpsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.passwordHash == "" {
			log.Warn().Msg("ops request rejected: OPS_PASSWORD_HASH not configured")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Ops access not configured"})
			return
		}

		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Missing credentials"})
			return
		}

		if !util.CheckPasswordHash(token, m.passwordHash) {
			log.Warn().Str("path", r.URL.Path).Msg("ops auth failure")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
