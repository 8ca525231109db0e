package common

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope is the wrapper used by the operational endpoints
type Envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// RespondJSON writes data as a bare JSON document
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondEnvelope writes data wrapped in a success envelope with a timestamp
func RespondEnvelope(w http.ResponseWriter, status int, data interface{}) {
	RespondJSON(w, status, Envelope{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Timestamp: Timestamp(time.Now()),
	})
}

// RespondMessage writes a success envelope carrying only a message
func RespondMessage(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, Envelope{
		Success:   status >= 200 && status < 300,
		Message:   message,
		Timestamp: Timestamp(time.Now()),
	})
}

// RespondNoContent writes a 204
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Timestamp formats t the way all response bodies do
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
