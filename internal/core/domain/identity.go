package domain

import (
	"strings"
	"time"
)

// NormalizeIdentity returns the store key for identity: trimmed and lower-cased.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// IdentityRecord is the behavioral state tracked for one identity key.
// Instances are owned by an IdentityStore and only mutated inside its
// WithRecord transactions.
type IdentityRecord struct {
	FailedAttempts int
	Actions        TimeWindow
	Requests       TimeWindow
	Suspicious     bool
	// BlockedUntil is zero when no block is present.
	BlockedUntil time.Time
}

// RecordShape sizes the windows of freshly created records.
type RecordShape struct {
	Horizon          time.Duration
	ActionCapacity   int
	RequestsCapacity int
}

func NewIdentityRecord(shape RecordShape) *IdentityRecord {
	return &IdentityRecord{
		Actions:  NewTimeWindow(shape.Horizon, shape.ActionCapacity),
		Requests: NewTimeWindow(shape.Horizon, shape.RequestsCapacity),
	}
}

// Blocked reports whether a block is present and still in the future.
func (r *IdentityRecord) Blocked(now time.Time) bool {
	return !r.BlockedUntil.IsZero() && now.Before(r.BlockedUntil)
}

// ClearExpiredBlock drops a block whose expiry has passed.
func (r *IdentityRecord) ClearExpiredBlock(now time.Time) {
	if !r.BlockedUntil.IsZero() && !now.Before(r.BlockedUntil) {
		r.BlockedUntil = time.Time{}
	}
}

// Signals evicts stale window entries and returns the inputs the scorer needs.
func (r *IdentityRecord) Signals(now time.Time) Signals {
	return Signals{
		FailedAttempts: r.FailedAttempts,
		Actions:        r.Actions.Count(now),
		Requests:       r.Requests.Count(now),
		Suspicious:     r.Suspicious,
	}
}

// Idle reports whether the record carries no state worth keeping: both
// windows are empty, no block is active and the sticky suspicious flag is off.
func (r *IdentityRecord) Idle(now time.Time) bool {
	if r.Suspicious || r.Blocked(now) {
		return false
	}
	return r.Actions.Count(now) == 0 && r.Requests.Count(now) == 0
}

// Clone returns a deep copy of the record.
func (r *IdentityRecord) Clone() IdentityRecord {
	return IdentityRecord{
		FailedAttempts: r.FailedAttempts,
		Actions:        r.Actions.Clone(),
		Requests:       r.Requests.Clone(),
		Suspicious:     r.Suspicious,
		BlockedUntil:   r.BlockedUntil,
	}
}

// Signals are the per-identity facts a trust score is computed from.
type Signals struct {
	FailedAttempts int
	Actions        int
	Requests       int
	Suspicious     bool
}
