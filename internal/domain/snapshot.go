package domain

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"fmt"
	"time"
)

// Snapshot is one parsed status report from a monitored PV system.
type Snapshot struct {
	ID         string    `json:"id"`
	SystemID   int       `json:"system_id"`
	SystemName string    `json:"system_name"`
	ReportedAt time.Time `json:"reported_at"`

	EnergyGenerationWh  *int     `json:"energy_generation_wh"`
	PowerGenerationW    *int     `json:"power_generation_w"`
	EnergyConsumptionWh *int     `json:"energy_consumption_wh"`
	PowerConsumptionW   *int     `json:"power_consumption_w"`
	NormalizedOutput    *float64 `json:"normalized_output"`
	TemperatureC        *float64 `json:"temperature_c"`
	VoltageV            *float64 `json:"voltage_v"`
}

// SnapshotID derives the stable dedupe key for a system's report timestamp.
// PVOutput repeats the latest report until the device uploads again, so two
// polls that see the same timestamp carry the same reading.
func SnapshotID(systemID int, reportedAt time.Time) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d/%d", systemID, reportedAt.UTC().Unix())))
	return hex.EncodeToString(sum[:])
}
