// Package metrics exposes Prometheus gauges for collected PVOutput readings.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridlight-hq/pvharvest/internal/domain"
)

var systemLabels = []string{"system_id", "system_name"}

// Set holds the gauges updated on every poll cycle.
type Set struct {
	registry *prometheus.Registry

	powerGeneration   *prometheus.GaugeVec
	powerConsumption  *prometheus.GaugeVec
	energyGeneration  *prometheus.GaugeVec
	energyConsumption *prometheus.GaugeVec
	temperature       *prometheus.GaugeVec
	voltage           *prometheus.GaugeVec
	lastReport        *prometheus.GaugeVec
	pollSuccess       *prometheus.GaugeVec
	pollsTotal        *prometheus.CounterVec
}

// NewSet builds the metric set on its own registry.
func NewSet() *Set {
	s := &Set{
		registry: prometheus.NewRegistry(),
		powerGeneration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pvharvest_power_generation_watts",
			Help: "Instantaneous power generation (W)",
		}, systemLabels),
		powerConsumption: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pvharvest_power_consumption_watts",
			Help: "Instantaneous power consumption (W)",
		}, systemLabels),
		energyGeneration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pvharvest_energy_generation_watthours",
			Help: "Energy generated today (Wh)",
		}, systemLabels),
		energyConsumption: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pvharvest_energy_consumption_watthours",
			Help: "Energy consumed today (Wh)",
		}, systemLabels),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pvharvest_temperature_celsius",
			Help: "Ambient temperature reported with the status (C)",
		}, systemLabels),
		voltage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pvharvest_voltage_volts",
			Help: "Voltage reported with the status (V)",
		}, systemLabels),
		lastReport: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pvharvest_last_report_timestamp_seconds",
			Help: "Unix timestamp of the latest status reading",
		}, systemLabels),
		pollSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pvharvest_poll_success",
			Help: "Whether the most recent poll of the system succeeded (1/0)",
		}, systemLabels),
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pvharvest_polls_total",
			Help: "Total poll attempts by result",
		}, []string{"result"}),
	}

	s.registry.MustRegister(
		s.powerGeneration,
		s.powerConsumption,
		s.energyGeneration,
		s.energyConsumption,
		s.temperature,
		s.voltage,
		s.lastReport,
		s.pollSuccess,
		s.pollsTotal,
	)
	return s
}

// ObserveSnapshot updates the per-system gauges from a collected snapshot.
// Absent readings leave their gauges untouched.
func (s *Set) ObserveSnapshot(snap domain.Snapshot) {
	if s == nil {
		return
	}

	labels := prometheus.Labels{
		"system_id":   strconv.Itoa(snap.SystemID),
		"system_name": snap.SystemName,
	}

	if snap.PowerGenerationW != nil {
		s.powerGeneration.With(labels).Set(float64(*snap.PowerGenerationW))
	}
	if snap.PowerConsumptionW != nil {
		s.powerConsumption.With(labels).Set(float64(*snap.PowerConsumptionW))
	}
	if snap.EnergyGenerationWh != nil {
		s.energyGeneration.With(labels).Set(float64(*snap.EnergyGenerationWh))
	}
	if snap.EnergyConsumptionWh != nil {
		s.energyConsumption.With(labels).Set(float64(*snap.EnergyConsumptionWh))
	}
	if snap.TemperatureC != nil {
		s.temperature.With(labels).Set(*snap.TemperatureC)
	}
	if snap.VoltageV != nil {
		s.voltage.With(labels).Set(*snap.VoltageV)
	}
	s.lastReport.With(labels).Set(float64(snap.ReportedAt.Unix()))
}

// ObservePoll records the outcome of a poll attempt for a system.
func (s *Set) ObservePoll(systemID int, systemName string, ok bool) {
	if s == nil {
		return
	}

	labels := prometheus.Labels{
		"system_id":   strconv.Itoa(systemID),
		"system_name": systemName,
	}
	if ok {
		s.pollSuccess.With(labels).Set(1)
		s.pollsTotal.WithLabelValues("success").Inc()
	} else {
		s.pollSuccess.With(labels).Set(0)
		s.pollsTotal.WithLabelValues("error").Inc()
	}
}

// Handler returns the HTTP handler serving the metric set.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (s *Set) Registry() *prometheus.Registry {
	return s.registry
}
