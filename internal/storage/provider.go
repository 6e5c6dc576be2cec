// Package storage selects the artifact backend for a run.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/horsie/harvester/internal/race"
	"github.com/horsie/harvester/internal/storage/gcs"
	"github.com/horsie/harvester/internal/storage/local"
	"github.com/horsie/harvester/internal/storage/memory"
)

// Supported backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config picks a backend and carries each backend's settings.
type Config struct {
	Backend string       `mapstructure:"backend"`
	Local   local.Config `mapstructure:"local"`
	GCS     gcs.Config   `mapstructure:"gcs"`
}

// Provider writes and reads run artifacts.
type Provider interface {
	race.BlobStore
	race.BlobReader
}

// Open builds the configured backend. The returned close func is never nil.
func Open(ctx context.Context, cfg Config) (Provider, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendLocal:
		if cfg.Local.BaseDir == "" {
			cfg.Local.BaseDir = local.DefaultBaseDir
		}
		store, err := local.New(cfg.Local)
		if err != nil {
			return nil, noop, fmt.Errorf("open local storage: %w", err)
		}
		return store, noop, nil
	case BackendGCS:
		store, err := gcs.Open(ctx, cfg.GCS)
		if err != nil {
			return nil, noop, fmt.Errorf("open gcs storage: %w", err)
		}
		return store, store.Close, nil
	case BackendMemory:
		return memory.NewBlobStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
