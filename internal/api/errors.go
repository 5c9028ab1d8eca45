package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kalambet/inkwell/internal/apperr"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a failure kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnsupportedLocation:
		return http.StatusUnprocessableEntity
	case apperr.KindParseFailed:
		return http.StatusConflict
	case apperr.KindDirectoryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError renders err. A cancelled dialog is not a failure and is
// answered with 200.
func writeAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindCancelled:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	case apperr.KindUnknown:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	default:
		httpError(w, statusFor(kind), kind.String(), "%s", apperr.Message(err))
	}
}
