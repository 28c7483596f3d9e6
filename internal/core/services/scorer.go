package services

import "github.com/drullandev/trust-engine/internal/core/domain"

// Penalty weights. They are fixed so scores stay comparable across deployments.
const (
	penaltyFailedAttempts = 5
	penaltyActionVolume   = 3
	penaltySuspicious     = 4
	penaltyRequestVolume  = 2
)

// Scorer computes trust scores from identity signals. It has no state beyond
// its thresholds and never mutates its input.
type Scorer struct {
	MaxFailedAttempts int
	MaxActions        int
	MaxRequests       int
}

func NewScorer(cfg Config) Scorer {
	return Scorer{
		MaxFailedAttempts: cfg.MaxFailedAttempts,
		MaxActions:        cfg.MaxActions,
		MaxRequests:       cfg.MaxRequests,
	}
}

// Assess subtracts each applicable penalty from a full score, in a fixed
// order, and clamps the result to [0, 10].
func (s Scorer) Assess(sig domain.Signals) domain.Assessment {
	score := domain.MaxTrustScore
	var reasons []domain.Reason

	if sig.FailedAttempts >= s.MaxFailedAttempts {
		score -= penaltyFailedAttempts
		reasons = append(reasons, domain.ReasonFailedAttempts)
	}
	if sig.Actions >= s.MaxActions {
		score -= penaltyActionVolume
		reasons = append(reasons, domain.ReasonActionVolume)
	}
	if sig.Suspicious {
		score -= penaltySuspicious
		reasons = append(reasons, domain.ReasonSuspicious)
	}
	if sig.Requests > s.MaxRequests {
		score -= penaltyRequestVolume
		reasons = append(reasons, domain.ReasonRequestVolume)
	}

	return domain.Assessment{Score: clamp(score, domain.MinTrustScore, domain.MaxTrustScore), Reasons: reasons}
}

func (s Scorer) Score(sig domain.Signals) int {
	return s.Assess(sig).Score
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
