package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/drullandev/trust-engine/internal/adapters/clearance"
	"github.com/drullandev/trust-engine/internal/adapters/storage/memory"
	"github.com/drullandev/trust-engine/internal/core/services"
)

func newTestService(t *testing.T) *services.AdmissionService {
	t.Helper()
	cfg := services.Config{
		MaxFailedAttempts:   3,
		MaxActions:          50,
		MaxRequests:         2,
		TimeWindow:          time.Minute,
		BlockDuration:       time.Minute,
		TrustScoreThreshold: 9,
	}
	service, err := services.NewAdmissionService(memory.New(cfg.RecordShape()), cfg,
		services.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(handler http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAdmissionMiddleware_ChallengesHighVolumeClients(t *testing.T) {
	service := newTestService(t)
	handler := NewAdmissionMiddleware(service, nil, nil)(okHandler())

	for i := 0; i < 2; i++ {
		if rec := serve(handler, "192.0.2.1:5555", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := serve(handler, "192.0.2.1:5555", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 challenge once over the request limit, got %d", rec.Code)
	}
	if rec.Header().Get(HeaderChallenge) != "required" {
		t.Fatalf("expected challenge header, got %q", rec.Header().Get(HeaderChallenge))
	}

	if rec := serve(handler, "192.0.2.2:5555", nil); rec.Code != http.StatusOK {
		t.Fatalf("other clients must not be affected, got %d", rec.Code)
	}
}

func TestAdmissionMiddleware_ClearanceSkipsChallenge(t *testing.T) {
	service := newTestService(t)
	issuer, err := clearance.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Minute)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	proxies := NewClientIPResolver([]netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")})
	handler := NewAdmissionMiddleware(service, issuer, proxies)(okHandler())
	service.MarkSuspicious("192.0.2.3")

	if rec := serve(handler, "192.0.2.3:1", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected suspicious client to be challenged, got %d", rec.Code)
	}

	grant, _ := issuer.Issue("192.0.2.3")
	if rec := serve(handler, "192.0.2.3:1", map[string]string{HeaderClearanceToken: grant.Token}); rec.Code != http.StatusOK {
		t.Fatalf("expected clearance to pass the challenge, got %d", rec.Code)
	}

	stolen := map[string]string{HeaderClearanceToken: grant.Token, "X-Real-IP": "192.0.2.4"}
	service.MarkSuspicious("192.0.2.4")
	if rec := serve(handler, "10.0.0.1:1", stolen); rec.Code != http.StatusForbidden {
		t.Fatalf("clearance issued to another identity must not pass, got %d", rec.Code)
	}
}

func TestAdmissionMiddleware_BlockedClientsGet429EvenWithClearance(t *testing.T) {
	service := newTestService(t)
	issuer, _ := clearance.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Minute)
	handler := NewAdmissionMiddleware(service, issuer, nil)(okHandler())

	service.Block("198.51.100.9", time.Now())
	grant, _ := issuer.Issue("198.51.100.9")

	rec := serve(handler, "198.51.100.9:80", map[string]string{HeaderClearanceToken: grant.Token})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for blocked client, got %d", rec.Code)
	}
}

func TestAdmissionMiddleware_NilControllerPassesThrough(t *testing.T) {
	handler := NewAdmissionMiddleware(nil, nil, nil)(okHandler())
	if rec := serve(handler, "192.0.2.1:1", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
}

func TestAdmissionMiddleware_ForgedForwardingHeadersDoNotEscapeBlock(t *testing.T) {
	service := newTestService(t)
	service.Block("198.51.100.9", time.Now())
	forged := map[string]string{"X-Forwarded-For": "203.0.113.77", "X-Real-IP": "203.0.113.78"}

	direct := NewAdmissionMiddleware(service, nil, nil)(okHandler())
	if rec := serve(direct, "198.51.100.9:80", forged); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 despite forged headers, got %d", rec.Code)
	}

	proxied := NewAdmissionMiddleware(service, nil,
		NewClientIPResolver([]netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}))(okHandler())
	if rec := serve(proxied, "198.51.100.9:80", forged); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("untrusted peer must not pick its identity, got %d", rec.Code)
	}
	spoofedChain := map[string]string{"X-Forwarded-For": "203.0.113.77, 198.51.100.9"}
	if rec := serve(proxied, "10.0.0.5:80", spoofedChain); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected the hop appended by the proxy to be used, got %d", rec.Code)
	}
}

func TestClientIPResolver(t *testing.T) {
	resolver := NewClientIPResolver([]netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("::1/128"),
	})
	cases := []struct {
		name       string
		resolver   *ClientIPResolver
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", resolver, "203.0.113.1:4000", nil, "203.0.113.1"},
		{"remote addr without port", resolver, "203.0.113.1", nil, "203.0.113.1"},
		{"untrusted peer ignores forwarded for", resolver, "203.0.113.1:1", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.1"},
		{"nil resolver ignores real ip", nil, "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1"},
		{"trusted peer", resolver, "10.0.0.1:1", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "198.51.100.1"},
		{"skips trusted hops", resolver, "10.0.0.1:1", map[string]string{"X-Forwarded-For": "192.0.2.7, 198.51.100.1, 10.0.0.2"}, "198.51.100.1"},
		{"trusted ipv6 peer", resolver, "[::1]:1", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"all hops trusted", resolver, "10.0.0.1:1", map[string]string{"X-Forwarded-For": "10.0.0.3"}, "10.0.0.1"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		for k, v := range tc.headers {
			req.Header.Set(k, v)
		}
		if got := tc.resolver.Resolve(req); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestRequireAdminKey(t *testing.T) {
	protected := RequireAdminKey("s3cret")(okHandler())

	if rec := serve(protected, "127.0.0.1:1", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}
	if rec := serve(protected, "127.0.0.1:1", map[string]string{HeaderAdminKey: "wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}
	if rec := serve(protected, "127.0.0.1:1", map[string]string{HeaderAdminKey: "s3cret"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", rec.Code)
	}

	open := RequireAdminKey("")(okHandler())
	if rec := serve(open, "127.0.0.1:1", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected empty key to disable the check, got %d", rec.Code)
	}
}
