package domain

import "time"

const (
	MinTrustScore = 0
	MaxTrustScore = 10
)

type Verdict string

const (
	VerdictAllow     Verdict = "allow"
	VerdictChallenge Verdict = "challenge"
	VerdictBlock     Verdict = "block"
)

// Reason names a scoring penalty that applied to an identity.
type Reason string

const (
	ReasonFailedAttempts Reason = "failed_attempts"
	ReasonActionVolume   Reason = "action_volume"
	ReasonSuspicious     Reason = "suspicious"
	ReasonRequestVolume  Reason = "request_volume"
)

// Assessment is the scorer's output.
type Assessment struct {
	Score   int
	Reasons []Reason
}

// Decision is what the admission controller answers for one call.
// Blocked and Challenge are never both true.
type Decision struct {
	Identity     string
	Blocked      bool
	Challenge    bool
	Score        int
	BlockedUntil time.Time
}

func (d Decision) Verdict() Verdict {
	switch {
	case d.Blocked:
		return VerdictBlock
	case d.Challenge:
		return VerdictChallenge
	default:
		return VerdictAllow
	}
}

// IdentitySnapshot is a read-only view of an identity's state.
type IdentitySnapshot struct {
	Identity       string
	FailedAttempts int
	Actions        int
	Requests       int
	Suspicious     bool
	Blocked        bool
	BlockedUntil   time.Time
	Score          int
	Reasons        []Reason
	Challenge      bool
}

// BlockEvent describes a block state change to mirror outside the process.
type BlockEvent struct {
	Identity string
	// Until is zero for an unblock.
	Until time.Time
}

// Stats summarizes engine state.
type Stats struct {
	Identities int
}
