package publishers

import (
	"time"

	"github.com/gridlight-hq/pvharvest/internal/domain"
)

// Event represents the payload published downstream for one snapshot.
type Event struct {
	SystemID    int             `json:"system_id"`
	SystemName  string          `json:"system_name"`
	Snapshot    domain.Snapshot `json:"snapshot"`
	CollectedAt time.Time       `json:"collected_at"`
}

// NewEvent constructs an Event for the given snapshot.
func NewEvent(snapshot domain.Snapshot) Event {
	return Event{
		SystemID:    snapshot.SystemID,
		SystemName:  snapshot.SystemName,
		Snapshot:    snapshot,
		CollectedAt: time.Now().UTC(),
	}
}
