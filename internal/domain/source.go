package domain

import "context"

// SnapshotSource fetches a full current-state document from the upstream
// position service. Implementations live in internal/upstream.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (SnapshotDocument, error)
}

// PushSource delivers raw messages from the live update channel. Run blocks
// until ctx is cancelled and is responsible for reconnecting on channel
// loss; while disconnected the engine degrades to snapshot-only updates.
type PushSource interface {
	Run(ctx context.Context, onMessage func(raw []byte)) error
}

// HistoryStore persists the append-only audit trail of closed positions and
// emitted alerts. It is optional; a nil store disables persistence.
type HistoryStore interface {
	RecordClosedPosition(ctx context.Context, pos Position) error
	RecordAlert(ctx context.Context, alert Alert) error
	ListClosedPositions(ctx context.Context, limit int) ([]Position, error)
	ListAlerts(ctx context.Context, limit int) ([]Alert, error)
}

// SignalBus provides pub/sub fan-out of engine events to out-of-process
// presentation consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
