package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/drullandev/trust-engine/internal/core/domain"
	"github.com/drullandev/trust-engine/internal/core/ports"
)

const (
	publishTimeout   = 2 * time.Second
	publishQueueSize = 256
)

// Config holds the engine thresholds.
type Config struct {
	MaxFailedAttempts   int
	MaxActions          int
	MaxRequests         int
	TimeWindow          time.Duration
	BlockDuration       time.Duration
	TrustScoreThreshold int
	// ReapInterval controls how often Run sweeps idle identities; 0 disables it.
	ReapInterval time.Duration
}

// Validate rejects values outside their documented range.
func (c Config) Validate() error {
	switch {
	case c.MaxFailedAttempts < 1:
		return rangeError("max failed attempts", c.MaxFailedAttempts, "must be >= 1")
	case c.MaxActions < 1:
		return rangeError("max actions", c.MaxActions, "must be >= 1")
	case c.MaxRequests < 1:
		return rangeError("max requests", c.MaxRequests, "must be >= 1")
	case c.TimeWindow <= 0:
		return rangeError("time window", c.TimeWindow, "must be positive")
	case c.BlockDuration <= 0:
		return rangeError("block duration", c.BlockDuration, "must be positive")
	case c.TrustScoreThreshold < 1 || c.TrustScoreThreshold > domain.MaxTrustScore:
		return rangeError("trust score threshold", c.TrustScoreThreshold, "must be within [1,10]")
	case c.ReapInterval < 0:
		return rangeError("reap interval", c.ReapInterval, "must not be negative")
	}
	return nil
}

// RecordShape sizes identity windows so they hold just enough entries for
// the scorer's volume checks.
func (c Config) RecordShape() domain.RecordShape {
	return domain.RecordShape{
		Horizon:          c.TimeWindow,
		ActionCapacity:   c.MaxActions,
		RequestsCapacity: c.MaxRequests + 1,
	}
}

func rangeError(field string, value any, reason string) error {
	return fmt.Errorf("%w: %s=%v %s", domain.ErrInvalidConfigRange, field, value, reason)
}

// Option customizes the service at construction.
type Option func(*AdmissionService)

func WithClock(clock ports.Clock) Option {
	return func(s *AdmissionService) { s.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *AdmissionService) { s.logger = logger }
}

// WithPublisher mirrors block changes through p from the Run loop.
func WithPublisher(p ports.BlockPublisher) Option {
	return func(s *AdmissionService) { s.publisher = p }
}

// AdmissionService is the trust-based AdmissionController.
type AdmissionService struct {
	store     ports.IdentityStore
	scorer    Scorer
	config    Config
	clock     ports.Clock
	logger    *slog.Logger
	publisher ports.BlockPublisher
	events    chan domain.BlockEvent
}

var _ ports.AdmissionController = (*AdmissionService)(nil)

// NewAdmissionService validates cfg and builds the service on top of store.
func NewAdmissionService(store ports.IdentityStore, cfg Config, opts ...Option) (*AdmissionService, error) {
	if store == nil {
		return nil, fmt.Errorf("identity store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &AdmissionService{
		store:  store,
		scorer: NewScorer(cfg),
		config: cfg,
		clock:  ports.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher != nil {
		s.events = make(chan domain.BlockEvent, publishQueueSize)
	}
	return s, nil
}

// ReportOutcome records one action outcome and its request, then returns the
// decision for the updated state.
func (s *AdmissionService) ReportOutcome(identity string, success bool) domain.Decision {
	key := normalize(identity)
	var decision domain.Decision
	s.store.WithRecord(key, func(rec *domain.IdentityRecord) {
		now := s.clock.Now()
		rec.ClearExpiredBlock(now)
		if success {
			rec.FailedAttempts = 0
		} else {
			rec.FailedAttempts++
		}
		rec.Actions.Record(now)
		rec.Requests.Record(now)
		decision = s.decide(key, rec, now)
	})
	return decision
}

// RecordRequest records an inbound request without an action outcome.
func (s *AdmissionService) RecordRequest(identity string) domain.Decision {
	key := normalize(identity)
	var decision domain.Decision
	s.store.WithRecord(key, func(rec *domain.IdentityRecord) {
		now := s.clock.Now()
		rec.ClearExpiredBlock(now)
		rec.Requests.Record(now)
		decision = s.decide(key, rec, now)
	})
	return decision
}

func (s *AdmissionService) ShouldChallenge(identity string) bool {
	return s.Score(identity) < s.config.TrustScoreThreshold
}

func (s *AdmissionService) IsBlocked(identity string) bool {
	rec, ok := s.store.Peek(normalize(identity))
	if !ok {
		return false
	}
	return rec.Blocked(s.clock.Now())
}

// Score returns the current trust score; unknown identities score 10.
func (s *AdmissionService) Score(identity string) int {
	rec, ok := s.store.Peek(normalize(identity))
	if !ok {
		return domain.MaxTrustScore
	}
	return s.scorer.Score(rec.Signals(s.clock.Now()))
}

func (s *AdmissionService) Snapshot(identity string) (domain.IdentitySnapshot, bool) {
	key := normalize(identity)
	rec, ok := s.store.Peek(key)
	if !ok {
		return domain.IdentitySnapshot{}, false
	}
	now := s.clock.Now()
	sig := rec.Signals(now)
	assessment := s.scorer.Assess(sig)
	blocked := rec.Blocked(now)

	snapshot := domain.IdentitySnapshot{
		Identity:       key,
		FailedAttempts: sig.FailedAttempts,
		Actions:        sig.Actions,
		Requests:       sig.Requests,
		Suspicious:     sig.Suspicious,
		Blocked:        blocked,
		Score:          assessment.Score,
		Reasons:        assessment.Reasons,
		Challenge:      !blocked && assessment.Score < s.config.TrustScoreThreshold,
	}
	if blocked {
		snapshot.BlockedUntil = rec.BlockedUntil
	}
	return snapshot, true
}

func (s *AdmissionService) MarkSuspicious(identity string) {
	s.setSuspicious(identity, true)
}

func (s *AdmissionService) ClearSuspicious(identity string) {
	s.setSuspicious(identity, false)
}

func (s *AdmissionService) setSuspicious(identity string, flag bool) {
	key := normalize(identity)
	changed := false
	s.store.WithRecord(key, func(rec *domain.IdentityRecord) {
		rec.ClearExpiredBlock(s.clock.Now())
		changed = rec.Suspicious != flag
		rec.Suspicious = flag
	})
	if changed {
		s.logger.Info("suspicious flag changed", "identity", key, "suspicious", flag)
	}
}

// Block hard-blocks identity until now plus the configured block duration
// and returns that expiry.
func (s *AdmissionService) Block(identity string, now time.Time) time.Time {
	key := normalize(identity)
	until := now.Add(s.config.BlockDuration)
	s.store.WithRecord(key, func(rec *domain.IdentityRecord) {
		rec.BlockedUntil = until
		// Queued under the record lock so mirror order matches record order.
		s.enqueue(domain.BlockEvent{Identity: key, Until: until})
	})
	s.logger.Info("identity blocked", "identity", key, "until", until)
	return until
}

func (s *AdmissionService) Unblock(identity string) {
	key := normalize(identity)
	wasBlocked := false
	s.store.WithRecord(key, func(rec *domain.IdentityRecord) {
		wasBlocked = rec.Blocked(s.clock.Now())
		rec.BlockedUntil = time.Time{}
		s.enqueue(domain.BlockEvent{Identity: key})
	})
	if wasBlocked {
		s.logger.Info("identity unblocked", "identity", key)
	}
}

func (s *AdmissionService) Stats() domain.Stats {
	return domain.Stats{Identities: s.store.Len()}
}

// Sweep evicts idle identity records now.
func (s *AdmissionService) Sweep() int {
	return s.store.Sweep(s.clock.Now())
}

// Run drives background work until ctx is done: periodic idle sweeps and
// delivery of block events to the publisher.
func (s *AdmissionService) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.config.ReapInterval > 0 {
		ticker := time.NewTicker(s.config.ReapInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Debug("swept idle identities", "removed", removed, "remaining", s.store.Len())
			}
		case event := <-s.events:
			s.publish(ctx, event)
		}
	}
}

func (s *AdmissionService) publish(ctx context.Context, event domain.BlockEvent) {
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(publishCtx, event); err != nil {
		s.logger.Warn("block mirror publish failed", "identity", event.Identity, "error", err)
	}
}

func (s *AdmissionService) enqueue(event domain.BlockEvent) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- event:
	default:
		s.logger.Warn("block mirror queue full, dropping event", "identity", event.Identity)
	}
}

func (s *AdmissionService) decide(key string, rec *domain.IdentityRecord, now time.Time) domain.Decision {
	score := s.scorer.Score(rec.Signals(now))
	decision := domain.Decision{Identity: key, Score: score}
	if rec.Blocked(now) {
		decision.Blocked = true
		decision.BlockedUntil = rec.BlockedUntil
		return decision
	}
	decision.Challenge = score < s.config.TrustScoreThreshold
	return decision
}

func normalize(identity string) string {
	return domain.NormalizeIdentity(identity)
}
