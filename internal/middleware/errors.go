package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON envelope of every API error.
type ErrorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError writes an ErrorBody with the request id attached.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	body := ErrorBody{Error: code, Message: message}
	if r != nil {
		body.RequestID = RequestIDFromContext(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
