package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gridlight-hq/pvharvest/internal/domain"
	"github.com/gridlight-hq/pvharvest/internal/logger"
	"github.com/gridlight-hq/pvharvest/internal/metrics"
	"github.com/gridlight-hq/pvharvest/pkg/publishers"
	"github.com/gridlight-hq/pvharvest/pkg/pvoutput"
	"github.com/gridlight-hq/pvharvest/pkg/systems"
)

// Service polls configured PVOutput systems and fans collected snapshots
// out to publishers. Clients and resolved system names are cached per
// system id across poll cycles.
type Service struct {
	factory ClientFactory
	pub     EventPublisher
	log     logger.Logger
	deduper SnapshotDeduper
	metrics *metrics.Set

	mu      sync.Mutex
	clients map[string]StatusClient
	names   map[string]string
}

// NewService wires a poller with the given client factory and sinks.
// A nil factory falls back to real PVOutput clients.
func NewService(factory ClientFactory, pub EventPublisher, log logger.Logger, deduper SnapshotDeduper, set *metrics.Set) *Service {
	if factory == nil {
		factory = DefaultClientFactory
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{
		factory: factory,
		pub:     pub,
		log:     log,
		deduper: deduper,
		metrics: set,
		clients: make(map[string]StatusClient),
		names:   make(map[string]string),
	}
}

// DefaultClientFactory builds a PVOutput API client from a system entry.
func DefaultClientFactory(cfg systems.System) (StatusClient, error) {
	return pvoutput.New(pvoutput.Config{
		APIKey:   cfg.APIKey,
		SystemID: cfg.SystemID,
		BaseURL:  cfg.BaseURL,
		Timeout:  cfg.RequestTimeout(),
	})
}

// Run executes one poll pass across all configured systems.
func (s *Service) Run(ctx context.Context, cfgs []systems.System) error {
	if s == nil || s.factory == nil {
		return fmt.Errorf("poller service is not initialized")
	}
	if len(cfgs) == 0 {
		return fmt.Errorf("no systems configured for polling")
	}

	errs := s.runAll(ctx, cfgs)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (s *Service) runAll(ctx context.Context, cfgs []systems.System) []error {
	errs := make([]error, 0, len(cfgs))

	for _, cfg := range cfgs {
		if ctx.Err() != nil {
			return errs
		}
		if err := s.pollSystem(ctx, cfg); err != nil {
			errs = append(errs, err)
			s.metrics.ObservePoll(cfg.SystemID, cfg.Name, false)
			s.log.ErrorObj("system poll failed", "poll_error", map[string]any{
				"id":        cfg.ID,
				"system_id": cfg.SystemID,
				"error":     err.Error(),
			})
		}
	}

	return errs
}

func (s *Service) pollSystem(ctx context.Context, cfg systems.System) error {
	client, err := s.clientFor(cfg)
	if err != nil {
		return fmt.Errorf("build client for system %s: %w", cfg.ID, err)
	}

	name, err := s.systemName(ctx, cfg, client)
	if err != nil {
		return fmt.Errorf("resolve name for system %s: %w", cfg.ID, err)
	}

	status, err := client.Status(ctx)
	if errors.Is(err, pvoutput.ErrNoData) {
		s.metrics.ObservePoll(cfg.SystemID, name, true)
		s.log.WarnObj("system has no status data yet", "poll_result", map[string]any{
			"id":        cfg.ID,
			"system_id": cfg.SystemID,
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch status for system %s: %w", cfg.ID, err)
	}

	snap := snapshotFromStatus(cfg.SystemID, name, status)
	s.metrics.ObservePoll(cfg.SystemID, name, true)
	s.metrics.ObserveSnapshot(snap)

	if s.deduper != nil {
		seen, err := s.deduper.SeenSnapshot(snap.ID)
		if err != nil {
			return fmt.Errorf("dedupe lookup for snapshot %s: %w", snap.ID, err)
		}
		if seen {
			s.log.DebugObj("snapshot already published", "poll_result", map[string]any{
				"id":          cfg.ID,
				"snapshot_id": snap.ID,
			})
			return nil
		}
	}

	if s.pub != nil {
		count, err := s.pub.Publish(ctx, publishers.NewEvent(snap))
		if err != nil {
			return fmt.Errorf("publish snapshot %s: %w", snap.ID, err)
		}
		s.log.InfoObj("snapshot published", "poll_result", map[string]any{
			"id":          cfg.ID,
			"system_id":   cfg.SystemID,
			"snapshot_id": snap.ID,
			"reported_at": snap.ReportedAt,
			"publishers":  count,
		})
	}

	if s.deduper != nil {
		if err := s.deduper.MarkSnapshot(snap.ID); err != nil {
			return fmt.Errorf("mark snapshot %s: %w", snap.ID, err)
		}
	}
	return nil
}

// clientFor returns the cached client for the system, creating it on first use.
func (s *Service) clientFor(cfg systems.System) (StatusClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[cfg.ID]; ok {
		return client, nil
	}
	client, err := s.factory(cfg)
	if err != nil {
		return nil, err
	}
	s.clients[cfg.ID] = client
	return client, nil
}

// systemName resolves the display name for a system, preferring the
// configured name and falling back to a cached getsystem lookup.
func (s *Service) systemName(ctx context.Context, cfg systems.System, client StatusClient) (string, error) {
	if cfg.Name != "" {
		return cfg.Name, nil
	}

	s.mu.Lock()
	name, ok := s.names[cfg.ID]
	s.mu.Unlock()
	if ok {
		return name, nil
	}

	sys, err := client.System(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.names[cfg.ID] = sys.SystemName
	s.mu.Unlock()
	return sys.SystemName, nil
}

// Close releases all cached API clients.
func (s *Service) Close() {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, client := range s.clients {
		client.Close()
		delete(s.clients, id)
	}
}

// snapshotFromStatus maps an API status reading onto the internal snapshot.
func snapshotFromStatus(systemID int, systemName string, st pvoutput.Status) domain.Snapshot {
	return domain.Snapshot{
		ID:                  domain.SnapshotID(systemID, st.ReportedAt),
		SystemID:            systemID,
		SystemName:          systemName,
		ReportedAt:          st.ReportedAt.UTC(),
		EnergyGenerationWh:  st.EnergyGeneration,
		PowerGenerationW:    st.PowerGeneration,
		EnergyConsumptionWh: st.EnergyConsumption,
		PowerConsumptionW:   st.PowerConsumption,
		NormalizedOutput:    st.NormalizedOutput,
		TemperatureC:        st.Temperature,
		VoltageV:            st.Voltage,
	}
}
