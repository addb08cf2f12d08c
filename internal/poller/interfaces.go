package poller

import (
	"context"

	"github.com/gridlight-hq/pvharvest/pkg/publishers"
	"github.com/gridlight-hq/pvharvest/pkg/pvoutput"
	"github.com/gridlight-hq/pvharvest/pkg/systems"
)

// StatusClient is the subset of the PVOutput client used by the poller.
type StatusClient interface {
	Status(ctx context.Context) (pvoutput.Status, error)
	System(ctx context.Context) (pvoutput.System, error)
	Close()
}

// ClientFactory builds a status client for a configured system.
type ClientFactory func(cfg systems.System) (StatusClient, error)

// EventPublisher publishes collected snapshots downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// SnapshotDeduper tracks which snapshots have already been published.
type SnapshotDeduper interface {
	SeenSnapshot(id string) (bool, error)
	MarkSnapshot(id string) error
}
