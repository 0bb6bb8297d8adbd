package devproxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andrebq/doorman/api"
	"github.com/andrebq/doorman/internal/testutil"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
)

func TestFrontendFallback(t *testing.T) {
	var frontendCount int
	frontendServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		frontendCount++
		w.WriteHeader(http.StatusOK)
	}))
	defer frontendServer.Close()

	ctx := context.Background()
	fallback, err := Frontend(ctx, frontendServer.URL)
	if err != nil {
		t.Fatal(err)
	}
	svc, cleanup := testutil.AcquireService(ctx, t, testutil.ServiceOptions{})
	defer cleanup()
	handler := api.AsHandler(ctx, api.NewService(svc.Store, svc.Hasher, svc.Codec, svc.Outbox), api.NewRealm(svc.Store, svc.Codec, false), api.Options{
		Fallback: fallback,
	})

	apitest.Handler(handler).Get("/index.html").Expect(t).Status(http.StatusOK).End()
	apitest.Handler(handler).Get("/reset-password/abc").Expect(t).Status(http.StatusOK).End()
	apitest.Handler(handler).Post("/auth/login").
		JSON(`{"email":"a@x.com","password":"secret1"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal(`$.success`, false)).
		End()

	if frontendCount != 2 {
		t.Fatal("Invalid frontend count: ", frontendCount)
	}
}

func TestFrontendUnavailable(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	target := down.URL
	down.Close()

	proxy, err := Frontend(context.Background(), target)
	if err != nil {
		t.Fatal(err)
	}
	apitest.Handler(proxy).Get("/").Expect(t).Status(http.StatusBadGateway).End()
}

func TestInvalidTarget(t *testing.T) {
	for _, target := range []string{"", "localhost:5173", "ftp://example.com", "http://"} {
		_, err := Frontend(context.Background(), target)
		if err != (InvalidTarget{Target: target}) {
			t.Fatalf("Unexpected error for %q: %v", target, err)
		}
	}
}
