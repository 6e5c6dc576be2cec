// Package postgres provides Postgres-backed persistence for finished harvest runs.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/horsie/harvester/internal/race"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Default table names.
const (
	DefaultRacesTable = "races"
	DefaultRunsTable  = "harvest_runs"
)

// Config controls the Postgres connection pool and target tables.
type Config struct {
	DSN             string
	RacesTable      string
	RunsTable       string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txBeginCloser interface {
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// RaceStore writes one run row plus one row per accepted race in a single transaction.
type RaceStore struct {
	pool       txBeginCloser
	racesTable string
	runsTable  string
}

// NewRaceStore connects a pool using cfg.
func NewRaceStore(ctx context.Context, cfg Config) (*RaceStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewRaceStoreWithPool(pool, cfg.RacesTable, cfg.RunsTable)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewRaceStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRaceStoreWithPool(pool txBeginCloser, racesTable, runsTable string) (*RaceStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if racesTable == "" {
		racesTable = DefaultRacesTable
	}
	if runsTable == "" {
		runsTable = DefaultRunsTable
	}
	for _, table := range []string{racesTable, runsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &RaceStore{pool: pool, racesTable: racesTable, runsTable: runsTable}, nil
}

// Close releases the underlying pool resources.
func (s *RaceStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the run and race tables when missing.
func (s *RaceStore) EnsureSchema(ctx context.Context) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		runs := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT PRIMARY KEY,
	last_updated TIMESTAMPTZ NOT NULL,
	total_races INTEGER NOT NULL,
	graded_stakes INTEGER NOT NULL,
	candidates_checked INTEGER NOT NULL,
	dataset_sha256 TEXT,
	summary JSONB NOT NULL
)`, s.runsTable)
		if _, err := tx.Exec(ctx, runs); err != nil {
			return fmt.Errorf("create %s: %w", s.runsTable, err)
		}
		races := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT NOT NULL REFERENCES %s (run_id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	race_id TEXT NOT NULL,
	title TEXT NOT NULL,
	race_number INTEGER NOT NULL,
	grade TEXT NOT NULL,
	race_date DATE NOT NULL,
	track TEXT NOT NULL,
	distance TEXT NOT NULL,
	surface TEXT NOT NULL,
	horses JSONB NOT NULL,
	entries_url TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
)`, s.racesTable, s.runsTable)
		if _, err := tx.Exec(ctx, races); err != nil {
			return fmt.Errorf("create %s: %w", s.racesTable, err)
		}
		return nil
	})
}

// SaveRun inserts the run and its records atomically.
func (s *RaceStore) SaveRun(ctx context.Context, summary race.Summary, records []race.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("race store is not configured")
	}
	if summary.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		runQuery := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	last_updated,
	total_races,
	graded_stakes,
	candidates_checked,
	dataset_sha256,
	summary
) VALUES ($1,$2,$3,$4,$5,$6,$7)`, s.runsTable)
		if _, err := tx.Exec(ctx, runQuery,
			summary.RunID,
			summary.LastUpdated,
			summary.TotalRaces,
			summary.GradedStakes,
			summary.CandidatesChecked,
			summary.DatasetSHA256,
			summaryJSON,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		raceQuery := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	seq,
	race_id,
	title,
	race_number,
	grade,
	race_date,
	track,
	distance,
	surface,
	horses,
	entries_url
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`, s.racesTable)
		for _, rec := range records {
			horsesJSON, err := json.Marshal(rec.Horses)
			if err != nil {
				return fmt.Errorf("marshal horses for %s: %w", rec.RaceID, err)
			}
			if _, err := tx.Exec(ctx, raceQuery,
				summary.RunID,
				rec.ID,
				string(rec.RaceID),
				rec.Title,
				rec.RaceNumber,
				rec.Grade,
				rec.Date,
				rec.Track,
				rec.Distance,
				rec.Surface,
				horsesJSON,
				rec.EntriesURL,
			); err != nil {
				return fmt.Errorf("insert race %s: %w", rec.RaceID, err)
			}
		}
		return nil
	})
}

func (s *RaceStore) inTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
