// Package app wires configuration, registries, storage, metrics, and the
// poll loop into the collector runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gridlight-hq/pvharvest/internal/config"
	"github.com/gridlight-hq/pvharvest/internal/logger"
	"github.com/gridlight-hq/pvharvest/internal/metrics"
	"github.com/gridlight-hq/pvharvest/internal/poller"
	"github.com/gridlight-hq/pvharvest/internal/storage"
	"github.com/gridlight-hq/pvharvest/pkg/publishers"
	"github.com/gridlight-hq/pvharvest/pkg/systems"
)

// Collector represents the collector runtime. It manages the poll loop,
// coordinating between configured systems, the poller service, and
// publishers. It also handles storage initialization and cleanup.
type Collector struct {
	cfg          *config.Config
	systemReg    *systems.Registry
	fanout       *publishers.Fanout
	pollService  *poller.Service
	pollInterval time.Duration
	metricsSet   *metrics.Set
	log          logger.Logger
	store        storage.Store
}

// NewCollector builds a collector runtime from config files.
func NewCollector(ctx context.Context, cfg *config.Config, log logger.Logger) (*Collector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	systemReg, err := systems.LoadRegistry(cfg.SystemsFile)
	if err != nil {
		return nil, fmt.Errorf("load systems registry: %w", err)
	}
	systemList := systemReg.All()
	systemIDs := make([]string, 0, len(systemList))
	for _, s := range systemList {
		systemIDs = append(systemIDs, s.ID)
	}
	log.InfoObj("systems registry loaded", "systems_meta", map[string]any{
		"count": len(systemIDs),
		"ids":   systemIDs,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubRegistry := publishers.DefaultRegistry()
	pubClients, err := publishers.BuildAll(ctx, pubRegistry, enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	storeOpts := storage.Options{
		SnapshotTTL:     cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storeOpts)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"snapshot_ttl_seconds":     int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	metricsSet := metrics.NewSet()
	pollService := poller.NewService(nil, fanout, log, store, metricsSet)

	return &Collector{
		cfg:          cfg,
		systemReg:    systemReg,
		fanout:       fanout,
		pollService:  pollService,
		pollInterval: cfg.PollInterval,
		metricsSet:   metricsSet,
		log:          log,
		store:        store,
	}, nil
}

// Run starts the poll loop until the context is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	if c == nil || c.pollService == nil {
		return fmt.Errorf("collector is not initialized")
	}
	defer c.close()

	systemList := c.systemReg.All()
	if len(systemList) == 0 {
		c.log.WarnObj("no systems configured; collector idle", "systems_file", c.cfg.SystemsFile)
		<-ctx.Done()
		return ctx.Err()
	}

	stopMetrics := c.serveMetrics(ctx)
	defer stopMetrics()

	c.log.InfoObj("collector loop starting", "collector_state", map[string]any{
		"systems_count":    len(systemList),
		"publishers_count": c.fanout.Size(),
		"poll_interval":    c.pollInterval.String(),
	})

	if err := c.runOnce(ctx, systemList); err != nil {
		c.log.ErrorObj("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.InfoObj("collector loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := c.runOnce(ctx, systemList); err != nil {
				c.log.ErrorObj("scheduled poll failed", "error", err)
			}
		}
	}
}

// runOnce performs a single poll pass across all configured systems.
func (c *Collector) runOnce(ctx context.Context, systemList []systems.System) error {
	start := time.Now()
	c.log.InfoObj("poll started", "poll_meta", map[string]any{
		"systems_count": len(systemList),
		"started_at":    start.UTC(),
	})
	if err := c.pollService.Run(ctx, systemList); err != nil {
		return err
	}
	c.log.InfoObj("poll completed", "poll_meta", map[string]any{
		"systems_count": len(systemList),
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return nil
}

// serveMetrics starts the Prometheus endpoint and returns a stop func.
// An empty metrics_addr disables the endpoint.
func (c *Collector) serveMetrics(ctx context.Context) func() {
	if c.cfg.MetricsAddr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.metricsSet.Handler())
	srv := &http.Server{Addr: c.cfg.MetricsAddr, Handler: mux}

	go func() {
		c.log.InfoObj("metrics endpoint listening", "metrics_addr", c.cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.ErrorObj("metrics endpoint failed", "error", err.Error())
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			c.log.ErrorObj("metrics endpoint shutdown failed", "error", err.Error())
		}
	}
}

// close releases the poller clients and the storage backend.
func (c *Collector) close() {
	if c == nil {
		return
	}
	c.pollService.Close()
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.log.ErrorObj("storage close failed", "error", err.Error())
		}
	}
}
