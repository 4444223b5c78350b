// Package httpx provides the uniform JSON response envelope used by every
// API endpoint.
package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clinistock/clinistock/internal/shared"
)

// Envelope is the response body shared by all endpoints.
type Envelope struct {
	Timestamp  time.Time          `json:"timestamp"`
	Success    bool               `json:"success"`
	Message    string             `json:"message,omitempty"`
	Data       any                `json:"data,omitempty"`
	Pagination *shared.Pagination `json:"pagination,omitempty"`
}

// JSON writes an envelope with the given status code.
func JSON(w http.ResponseWriter, status int, env Envelope) {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// OK writes a successful envelope carrying data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 envelope carrying the created resource.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

// OKMessage writes a successful envelope with a message and no data.
func OKMessage(w http.ResponseWriter, message string) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message})
}

// OKPaged writes a successful envelope with pagination metadata.
func OKPaged(w http.ResponseWriter, data any, p shared.Pagination) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data, Pagination: &p})
}

// DecodeJSON decodes a JSON request body into the target struct. Malformed
// bodies surface as invalid-argument errors so clients get a 400.
func DecodeJSON(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return shared.InvalidArgumentf("malformed request body: %v", err)
	}
	return nil
}
