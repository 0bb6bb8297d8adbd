package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/andrebq/doorman/account"
	"github.com/rs/zerolog/hlog"
)

type (
	// Envelope wraps every response body
	Envelope struct {
		Success bool   `json:"success"`
		Data    any    `json:"data,omitempty"`
		Message string `json:"message,omitempty"`
		Error   string `json:"error,omitempty"`
	}

	Session struct {
		Token string       `json:"token"`
		User  account.View `json:"user"`
	}

	invalidPayload struct {
		cause error
	}
)

const (
	maxBodySize = 1 << 20

	msgInternalError    = "Internal server error"
	msgInvalidPayload   = "Invalid request payload"
	msgUserNotFound     = "User not found"
	msgNotFound         = "Route not found"
	msgMethodNotAllowed = "Method not allowed"
)

func (i invalidPayload) Error() string {
	return "api: invalid request payload, cause " + i.cause.Error()
}

func (i invalidPayload) Unwrap() error { return i.cause }

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Unable to write response")
	}
}

func ok(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	writeEnvelope(w, r, status, Envelope{Success: true, Message: message, Data: data})
}

func fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeEnvelope(w, r, status, Envelope{Success: false, Message: message})
}

// internalError logs the cause and hides it from the client
func internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	hlog.FromRequest(r).Error().Err(err).Msg(msg)
	fail(w, r, http.StatusInternalServerError, msgInternalError)
}

// decode reads the request body into out. An empty body leaves out
// untouched so that required field checks report what is missing.
func decode(r *http.Request, w http.ResponseWriter, out any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(body)
	err := dec.Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return invalidPayload{cause: err}
	}
	return nil
}
