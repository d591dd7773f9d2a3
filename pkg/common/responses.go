package common

import (
	"encoding/json"
	"net/http"

	apperrors "mindlink-backend/pkg/errors"
)

// APIResponse is the standard JSON envelope for every REST response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo carries the client-facing error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondJSON writes a success envelope with the given status and data.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// RespondError writes an error envelope.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	})
}

// RespondAppError maps an application error onto the wire using its own
// HTTP status and classification.
func RespondAppError(w http.ResponseWriter, err error) {
	RespondError(w, apperrors.HTTPStatus(err), string(apperrors.TypeOf(err)), apperrors.UserMessage(err))
}

// ParseJSONBody decodes a JSON request body into v, capping the body size.
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
