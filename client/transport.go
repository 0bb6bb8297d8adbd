package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andrebq/doorman/internal/logutil"
)

type (
	// Response mirrors the envelope returned by the server
	Response struct {
		Status  int             `json:"-"`
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data,omitempty"`
		Message string          `json:"message,omitempty"`
		Error   string          `json:"error,omitempty"`
	}

	// Transport sends requests to the server on behalf of the stored
	// session.
	Transport struct {
		BaseURL string
		HTTP    *http.Client
		Store   Store
		// OnUnauthorized is called after any 401 once the session is cleared
		OnUnauthorized func()
	}
)

const (
	errNetwork      = "Network error"
	errUnauthorized = "Unauthorized"
)

func NewTransport(baseURL string, store Store) *Transport {
	return &Transport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Store:   store,
	}
}

// Do never returns an error, failures are reported through the envelope.
func (t *Transport) Do(ctx context.Context, method, path string, body any) Response {
	log := logutil.GetOrDefault(ctx).With().Str("method", method).Str("path", path).Logger()
	var payload *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			log.Error().Err(err).Msg("Unable to encode request")
			return Response{Error: err.Error()}
		}
		payload = bytes.NewReader(buf)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.BaseURL+path, payload)
	if err != nil {
		log.Error().Err(err).Msg("Unable to create request")
		return Response{Error: errNetwork}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if session, found, err := t.Store.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Unable to load stored session")
	} else if found && session.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %v", session.Token))
	}

	res, err := t.HTTP.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("Request failed")
		return Response{Error: errNetwork}
	}
	defer res.Body.Close()

	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		log.Debug().Err(err).Int("status", res.StatusCode).Msg("Unable to decode response")
		out = Response{Error: http.StatusText(res.StatusCode)}
	}
	out.Status = res.StatusCode
	if res.StatusCode == http.StatusUnauthorized {
		if err := t.Store.Clear(ctx); err != nil {
			log.Warn().Err(err).Msg("Unable to clear stored session")
		}
		if t.OnUnauthorized != nil {
			t.OnUnauthorized()
		}
		out.Success = false
		out.Error = errUnauthorized
	}
	return out
}
