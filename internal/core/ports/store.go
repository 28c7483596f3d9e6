// Package ports defines the contracts between the engine and its adapters.
package ports

import (
	"time"

	"github.com/drullandev/trust-engine/internal/core/domain"
)

// IdentityStore owns every IdentityRecord. WithRecord is the only way to
// mutate one: it serializes callers per key while other keys proceed in
// parallel, creating a default record on first reference.
type IdentityStore interface {
	WithRecord(key string, fn func(rec *domain.IdentityRecord))
	// Peek returns a copy of the record without creating one.
	Peek(key string) (domain.IdentityRecord, bool)
	// Sweep evicts idle records and returns how many were removed.
	Sweep(now time.Time) int
	Len() int
}
