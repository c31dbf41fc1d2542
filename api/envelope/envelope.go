// Package envelope - Response envelopes for the HTTP API
// Every failure leaves the server as a classified ErrorBody.
package envelope

import (
	"encoding/json"
	"net/http"

	"housecost/internal/errors"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error       errors.Type `json:"error"`
	Message     string      `json:"message"`
	Constituent string      `json:"constituent,omitempty"`
}

// FromError classifies err into an error body and status code.
// Causes of server-side failures are not exposed to clients.
func FromError(err error) (ErrorBody, int) {
	status := errors.StatusCode(err)
	e, ok := errors.As(err)
	if !ok {
		return ErrorBody{Error: errors.TypeInternal, Message: "internal server error"}, status
	}

	body := ErrorBody{
		Error:       e.Type,
		Message:     e.Message,
		Constituent: e.Constituent(),
	}
	if e.Cause != nil && status < http.StatusInternalServerError {
		body.Message += ": " + e.Cause.Error()
	}
	return body, status
}

// WriteJSON writes data as a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a classified error response
func WriteError(w http.ResponseWriter, err error) {
	body, status := FromError(err)
	WriteJSON(w, status, body)
}
