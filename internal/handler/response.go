package handler

import (
	"encoding/json"
	"net/http"

	"github.com/wanderplan/trip-engine/internal/apperrors"
	"github.com/wanderplan/trip-engine/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// decodeBody decodes a JSON request body into dst, mapping malformed JSON to
// a validation error.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.ValidationError("Invalid JSON body")
	}
	return nil
}
