package systems

// Package systems loads the registry of monitored PV systems (YAML/JSON).

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultRequestTimeoutSeconds = 8

// System is a single monitored installation declared in the systems file.
type System struct {
	ID                    string `json:"id" yaml:"id"`
	Name                  string `json:"name" yaml:"name"`
	SystemID              int    `json:"system_id" yaml:"system_id"`
	APIKey                string `json:"api_key" yaml:"api_key"`
	BaseURL               string `json:"base_url" yaml:"base_url"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// RequestTimeout returns the per-request bound for this system.
func (s System) RequestTimeout() time.Duration {
	if s.RequestTimeoutSeconds <= 0 {
		return defaultRequestTimeoutSeconds * time.Second
	}
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// registryFile represents the structure of the systems configuration file.
type registryFile struct {
	Systems []System `json:"systems" yaml:"systems"`
}

// Registry materializes the systems declared in a config file.
type Registry struct {
	systems []System
	idx     map[string]System
}

// LoadRegistry loads the systems registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("systems file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open systems file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read systems file: %w", err)
	}

	fileReg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Systems) == 0 {
		return nil, errors.New("systems file contains no systems entries")
	}

	reg := &Registry{
		systems: make([]System, len(fileReg.Systems)),
		idx:     make(map[string]System, len(fileReg.Systems)),
	}

	for i := range fileReg.Systems {
		cfg := sanitizeSystem(fileReg.Systems[i])
		if err := validateSystem(cfg); err != nil {
			return nil, fmt.Errorf("systems[%d]: %w", i, err)
		}
		if _, exists := reg.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate system id %q", cfg.ID)
		}
		reg.systems[i] = cfg
		reg.idx[cfg.ID] = cfg
	}

	return reg, nil
}

// parseRegistry attempts to decode the systems file content.
func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg registryFile
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("systems file format not recognized (expected YAML or JSON)")
}

// sanitizeSystem trims and normalizes the system config fields.
func sanitizeSystem(cfg System) System {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	return cfg
}

// validateSystem checks that required fields are present.
func validateSystem(cfg System) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.SystemID <= 0 {
		return fmt.Errorf("system_id is required for system %q", cfg.ID)
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("api_key is required for system %q", cfg.ID)
	}
	return nil
}

// ByID returns the system config for the given id.
func (r *Registry) ByID(id string) (System, bool) {
	if r == nil {
		return System{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return System{}, false
	}

	cfg, ok := r.idx[id]
	return cfg, ok
}

// All returns all configured systems.
func (r *Registry) All() []System {
	if r == nil {
		return nil
	}

	out := make([]System, len(r.systems))
	copy(out, r.systems)
	return out
}
