package api

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/andrebq/doorman/internal/logutil"
	"github.com/andrebq/doorman/notify"
	"github.com/gorilla/handlers"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type (
	Options struct {
		// Prefix where account routes are mounted, defaults to /auth
		Prefix string
		// CORSOrigins allowed to call the api from a browser, empty disables CORS
		CORSOrigins []string
		// Outbox, when not nil, is exposed at GET /dev/outbox
		Outbox *notify.Outbox
		// Fallback serves requests that match no route
		Fallback http.Handler
	}
)

const (
	DefaultPrefix = "/auth"

	msgServerRunning = "Server is running!"
)

// Routes registers the account routes on router
func Routes(router *httprouter.Router, svc *Service, realm *Realm, prefix string) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	prefix = path.Clean("/" + strings.Trim(prefix, "/"))
	at := func(p string) string { return path.Join(prefix, p) }

	router.HandlerFunc("POST", at("register"), svc.register)
	router.HandlerFunc("POST", at("login"), svc.login)
	router.HandlerFunc("POST", at("verify-email"), svc.verifyEmail)
	router.HandlerFunc("POST", at("forgot-password"), svc.forgotPassword)
	router.HandlerFunc("POST", at("reset-password"), svc.resetPassword)
	router.Handler("GET", at("me"), realm.Protect(http.HandlerFunc(svc.me)))
	router.Handler("PUT", at("update-email"), realm.Protect(http.HandlerFunc(svc.updateEmail)))
}

// NewRouter returns a router whose fallbacks answer with envelopes
func NewRouter() *httprouter.Router {
	router := httprouter.New()
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		hlog.FromRequest(r).Error().Interface("panic", v).Msg("Handler panic")
		fail(w, r, http.StatusInternalServerError, msgInternalError)
	}
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, http.StatusNotFound, msgNotFound)
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})
	router.HandlerFunc("GET", "/health", func(w http.ResponseWriter, r *http.Request) {
		ok(w, r, http.StatusOK, msgServerRunning, nil)
	})
	return router
}

// AsHandler returns the complete http.Handler for the service
func AsHandler(ctx context.Context, svc *Service, realm *Realm, opts Options) http.Handler {
	router := NewRouter()
	Routes(router, svc, realm, opts.Prefix)
	if opts.Outbox != nil {
		router.HandlerFunc("GET", "/dev/outbox", func(w http.ResponseWriter, r *http.Request) {
			ok(w, r, http.StatusOK, "", opts.Outbox.Sent())
		})
	}
	if opts.Fallback != nil {
		router.NotFound = opts.Fallback
		router.HandleMethodNotAllowed = false
	}
	return Middleware(ctx, router, opts.CORSOrigins)
}

// Middleware adds request logging and optionally CORS to h
func Middleware(ctx context.Context, h http.Handler, corsOrigins []string) http.Handler {
	log := logutil.GetOrDefault(ctx)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		lvl := zerolog.InfoLevel
		if status >= http.StatusInternalServerError {
			lvl = zerolog.ErrorLevel
		}
		hlog.FromRequest(r).WithLevel(lvl).
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	})(h)
	h = hlog.RemoteAddrHandler("remote")(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(log)(h)
	if len(corsOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(corsOrigins),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(h)
	}
	return h
}
