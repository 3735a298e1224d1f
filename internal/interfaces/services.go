package interfaces

import (
	"context"
	"time"

	"github.com/KeshavPeri/tickle/internal/models"
)

// SnapshotBuilder produces a complete snapshot for one stock.
type SnapshotBuilder interface {
	Build(ctx context.Context, stock models.Stock, now time.Time) (*models.Snapshot, error)
}

// BatchEventSink receives batch progress events.
type BatchEventSink interface {
	Broadcast(event models.BatchEvent)
}
