package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrorBody represents a consistent error payload returned by the API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteError renders err using the status derived from its Kind. AppErrors keep
// their own code, status and details.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = StatusForKind(appErr.ErrorKind())
		}
		JSONError(w, status, appErr.Code, appErr.Error(), appErr.Details)
		return
	}
	kind := KindOf(err)
	code := strings.ToUpper(string(kind))
	message := err.Error()
	if kind == KindInternal {
		message = "internal error"
	}
	JSONError(w, StatusForKind(kind), code, message, nil)
}

// DecodeJSON decodes the request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return NewAppError(KindValidation, "BAD_REQUEST", "invalid payload", err)
	}
	return nil
}
