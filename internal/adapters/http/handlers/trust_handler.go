package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/drullandev/trust-engine/internal/adapters/clearance"
	"github.com/drullandev/trust-engine/internal/core/domain"
	"github.com/drullandev/trust-engine/internal/core/ports"
)

const maxBodyBytes = 4 << 10

// ClearanceIssuer issues challenge clearance tokens.
type ClearanceIssuer interface {
	Issue(identity string) (clearance.Grant, error)
}

// TrustHandler exposes the admission controller over HTTP.
type TrustHandler struct {
	controller ports.AdmissionController
	issuer     ClearanceIssuer
	clock      ports.Clock
	logger     *slog.Logger
}

func NewTrustHandler(controller ports.AdmissionController, issuer ClearanceIssuer, clock ports.Clock, logger *slog.Logger) *TrustHandler {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TrustHandler{controller: controller, issuer: issuer, clock: clock, logger: logger}
}

type outcomeRequest struct {
	Identity string `json:"identity"`
	Success  *bool  `json:"success"`
}

type identityRequest struct {
	Identity string `json:"identity"`
}

type decisionResponse struct {
	Identity     string     `json:"identity"`
	Verdict      string     `json:"verdict"`
	Blocked      bool       `json:"blocked"`
	Challenge    bool       `json:"challenge"`
	Score        int        `json:"score"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

type snapshotResponse struct {
	Identity       string          `json:"identity"`
	Known          bool            `json:"known"`
	FailedAttempts int             `json:"failed_attempts"`
	Actions        int             `json:"actions"`
	Requests       int             `json:"requests"`
	Suspicious     bool            `json:"suspicious"`
	Blocked        bool            `json:"blocked"`
	BlockedUntil   *time.Time      `json:"blocked_until,omitempty"`
	Score          int             `json:"score"`
	Reasons        []domain.Reason `json:"reasons"`
	Challenge      bool            `json:"challenge"`
}

type blockResponse struct {
	Identity     string    `json:"identity"`
	BlockedUntil time.Time `json:"blocked_until"`
}

type clearanceResponse struct {
	Identity  string    `json:"identity"`
	Token     string    `json:"token"`
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReportOutcome handles POST /v1/outcomes.
func (h *TrustHandler) ReportOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	identity := strings.TrimSpace(req.Identity)
	if identity == "" || req.Success == nil {
		writeError(w, http.StatusBadRequest, "identity and success are required")
		return
	}
	writeJSON(w, http.StatusOK, toDecisionResponse(h.controller.ReportOutcome(identity, *req.Success)))
}

// RecordRequest handles POST /v1/requests.
func (h *TrustHandler) RecordRequest(w http.ResponseWriter, r *http.Request) {
	identity, ok := decodeIdentity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toDecisionResponse(h.controller.RecordRequest(identity)))
}

// GetIdentity handles GET /v1/identities/{identity}. Unknown identities are
// reported as fully trusted.
func (h *TrustHandler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	snapshot, known := h.controller.Snapshot(identity)
	if !known {
		writeJSON(w, http.StatusOK, snapshotResponse{
			Identity: domain.NormalizeIdentity(identity),
			Score:    domain.MaxTrustScore,
			Reasons:  []domain.Reason{},
		})
		return
	}

	resp := snapshotResponse{
		Identity:       snapshot.Identity,
		Known:          true,
		FailedAttempts: snapshot.FailedAttempts,
		Actions:        snapshot.Actions,
		Requests:       snapshot.Requests,
		Suspicious:     snapshot.Suspicious,
		Blocked:        snapshot.Blocked,
		Score:          snapshot.Score,
		Reasons:        snapshot.Reasons,
		Challenge:      snapshot.Challenge,
	}
	if resp.Reasons == nil {
		resp.Reasons = []domain.Reason{}
	}
	if snapshot.Blocked {
		until := snapshot.BlockedUntil
		resp.BlockedUntil = &until
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TrustHandler) MarkSuspicious(w http.ResponseWriter, r *http.Request) {
	h.controller.MarkSuspicious(chi.URLParam(r, "identity"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *TrustHandler) ClearSuspicious(w http.ResponseWriter, r *http.Request) {
	h.controller.ClearSuspicious(chi.URLParam(r, "identity"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *TrustHandler) Block(w http.ResponseWriter, r *http.Request) {
	identity := domain.NormalizeIdentity(chi.URLParam(r, "identity"))
	until := h.controller.Block(identity, h.clock.Now())
	writeJSON(w, http.StatusOK, blockResponse{Identity: identity, BlockedUntil: until})
}

func (h *TrustHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.controller.Unblock(chi.URLParam(r, "identity"))
	w.WriteHeader(http.StatusNoContent)
}

// IssueClearance handles POST /v1/clearances. The caller is expected to have
// verified a solved challenge for the identity.
func (h *TrustHandler) IssueClearance(w http.ResponseWriter, r *http.Request) {
	if h.issuer == nil {
		writeError(w, http.StatusNotImplemented, "clearance tokens are disabled")
		return
	}
	identity, ok := decodeIdentity(w, r)
	if !ok {
		return
	}
	if h.controller.IsBlocked(identity) {
		writeError(w, http.StatusConflict, domain.ErrBlocked.Error())
		return
	}

	key := domain.NormalizeIdentity(identity)
	grant, err := h.issuer.Issue(key)
	if err != nil {
		h.logger.Error("issue clearance failed", "identity", key, "error", err)
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	writeJSON(w, http.StatusCreated, clearanceResponse{
		Identity:  key,
		Token:     grant.Token,
		TokenID:   grant.ID,
		ExpiresAt: grant.ExpiresAt,
	})
}

func (h *TrustHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"identities": h.controller.Stats().Identities})
}

func decodeIdentity(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req identityRequest
	if !decodeBody(w, r, &req) {
		return "", false
	}
	identity := strings.TrimSpace(req.Identity)
	if identity == "" {
		writeError(w, http.StatusBadRequest, "identity is required")
		return "", false
	}
	return identity, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func toDecisionResponse(d domain.Decision) decisionResponse {
	resp := decisionResponse{
		Identity:  d.Identity,
		Verdict:   string(d.Verdict()),
		Blocked:   d.Blocked,
		Challenge: d.Challenge,
		Score:     d.Score,
	}
	if d.Blocked {
		until := d.BlockedUntil
		resp.BlockedUntil = &until
	}
	return resp
}
