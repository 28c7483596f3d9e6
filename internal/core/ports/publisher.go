package ports

import (
	"context"

	"github.com/drullandev/trust-engine/internal/core/domain"
)

// BlockPublisher mirrors block state changes to an external system.
type BlockPublisher interface {
	Publish(ctx context.Context, event domain.BlockEvent) error
}
