// Package middleware holds the HTTP middlewares of the trust API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/drullandev/trust-engine/internal/core/domain"
	"github.com/drullandev/trust-engine/internal/core/ports"
)

const (
	blockedMessage   = "access from this client is temporarily blocked"
	challengeMessage = "additional verification is required before this request can proceed"

	HeaderChallenge      = "X-Trust-Challenge"
	HeaderClearanceToken = "X-Clearance-Token"
)

// ClearanceVerifier validates a token proving a challenge was solved.
type ClearanceVerifier interface {
	Verify(token, identity string) error
}

// NewAdmissionMiddleware records every request against the client IP and
// refuses blocked clients. Clients that must be challenged are refused unless
// they present a valid clearance token issued for the same IP. A nil
// resolver keys on the peer address.
func NewAdmissionMiddleware(controller ports.AdmissionController, verifier ClearanceVerifier, resolver *ClientIPResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if controller == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := resolver.Resolve(r)
			decision := controller.RecordRequest(ip)

			switch decision.Verdict() {
			case domain.VerdictBlock:
				writeBlocked(w)
				return
			case domain.VerdictChallenge:
				if !hasClearance(r, verifier, decision.Identity) {
					writeChallenge(w)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasClearance(r *http.Request, verifier ClearanceVerifier, identity string) bool {
	if verifier == nil {
		return false
	}
	token := strings.TrimSpace(r.Header.Get(HeaderClearanceToken))
	if token == "" {
		return false
	}
	return verifier.Verify(token, identity) == nil
}

func writeBlocked(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(blockedMessage))
}

func writeChallenge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set(HeaderChallenge, "required")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(challengeMessage))
}
