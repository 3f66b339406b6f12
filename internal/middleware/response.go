package middleware

import (
	"net/http"

	"github.com/wanderplan/trip-engine/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}
