package domain

import (
	"context"
	"errors"
)

// ErrUnknownIntersection marks an inbound adjustment referencing an
// intersection that does not exist in the loaded network.
var ErrUnknownIntersection = errors.New("unknown intersection")

// SnapshotRepository persists per-tick telemetry snapshots.
// The domain defines the interface; implementations live in internal/repository.
type SnapshotRepository interface {
	// SaveSnapshot persists one telemetry snapshot.
	SaveSnapshot(ctx context.Context, update TrafficUpdate) error

	// RecentSnapshots returns up to limit snapshots, newest first.
	RecentSnapshots(ctx context.Context, limit int) ([]TrafficUpdate, error)

	// Health checks storage connectivity.
	Health(ctx context.Context) error
}

// Gateway is the messaging boundary of the simulation. The transport behind
// it is an external collaborator; the simulation stays correct if every call
// fails or every message is lost.
type Gateway interface {
	// PublishUpdate enqueues a snapshot for best-effort delivery. It must
	// never block the tick loop.
	PublishUpdate(update TrafficUpdate)

	// PublishAlerts enqueues congestion alerts, same delivery contract.
	PublishAlerts(alerts []CongestionAlert)

	// Adjustments drains the inbound light-adjustment commands received
	// since the previous call. Non-blocking.
	Adjustments() []LightAdjustment

	// Health checks broker connectivity.
	Health(ctx context.Context) error

	// Close releases the transport.
	Close() error
}
