package ports

import (
	"time"

	"github.com/drullandev/trust-engine/internal/core/domain"
)

type AdmissionController interface {
	ReportOutcome(identity string, success bool) domain.Decision
	RecordRequest(identity string) domain.Decision
	ShouldChallenge(identity string) bool
	IsBlocked(identity string) bool
	Score(identity string) int
	Snapshot(identity string) (domain.IdentitySnapshot, bool)
	MarkSuspicious(identity string)
	ClearSuspicious(identity string)
	Block(identity string, now time.Time) time.Time
	Unblock(identity string)
	Stats() domain.Stats
}
