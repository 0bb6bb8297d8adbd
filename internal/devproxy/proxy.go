// Package devproxy forwards everything the api does not handle to the
// frontend development server, so both share the same origin.
package devproxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/andrebq/doorman/internal/logutil"
)

type (
	InvalidTarget struct {
		Target string
	}
)

func (i InvalidTarget) Error() string {
	return fmt.Sprintf("devproxy: %v must be an absolute http(s) url", i.Target)
}

// Frontend returns a reverse proxy to target
func Frontend(ctx context.Context, target string) (http.Handler, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, InvalidTarget{Target: target}
	}
	log := logutil.GetOrDefault(ctx).With().Str("frontend", u.String()).Logger()
	proxy := httputil.NewSingleHostReverseProxy(u)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Frontend unavailable")
		http.Error(w, "Frontend unavailable", http.StatusBadGateway)
	}
	return proxy, nil
}
