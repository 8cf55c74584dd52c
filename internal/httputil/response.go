package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/R3E-Network/ordzaar/pkg/logger"
)

var responseLog = logger.NewDefault("httputil")

// encodeFailure is sent when a response value cannot be encoded.
var encodeFailure = []byte(`{"success":false,"error":"Server error","code":"INTERNAL_ERROR"}` + "\n")

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Message string                 `json:"message,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes v as JSON with the given status. A value that cannot be
// encoded is logged and answered with a 500 error envelope.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		responseLog.WithError(err).WithField("status", status).Error("encode response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(encodeFailure)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// WriteSuccess writes a success envelope carrying data.
func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteSuccessMessage writes a success envelope with a message.
func WriteSuccessMessage(w http.ResponseWriter, status int, data interface{}, message string) {
	WriteJSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

// WriteErrorResponse writes a failure envelope.
func WriteErrorResponse(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	WriteJSON(w, status, Envelope{Success: false, Error: message, Code: code, Details: details})
}
