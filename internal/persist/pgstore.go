package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/l1jgo/gameworld/internal/config"
	"go.uber.org/zap"
)

// PGStore keeps snapshots as JSONB rows in the snapshots table.
type PGStore struct {
	pool    *pgxpool.Pool
	log     *zap.Logger
	version int64 // schema version after migrating
}

// OpenPGStore connects to PostgreSQL, checks the server answers and brings
// the snapshot schema up to date. Close releases the pool.
func OpenPGStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*PGStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect snapshot db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping snapshot db: %w", err)
	}

	version, err := migrate(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("snapshot store ready",
		zap.String("application", cfg.ApplicationName),
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Int64("schema", version))
	return &PGStore{pool: pool, log: log, version: version}, nil
}

// poolConfig turns the database section into pool settings. Snapshot
// writes are rare and small, so only the sizes set in config override
// pgx's defaults.
func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = min(int32(cfg.MaxIdleConns), poolCfg.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	params := poolCfg.ConnConfig.RuntimeParams
	if cfg.ApplicationName != "" {
		params["application_name"] = cfg.ApplicationName
	}
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	return poolCfg, nil
}

// Version is the schema version the store migrated to.
func (s *PGStore) Version() int64 { return s.version }

func (s *PGStore) Close() { s.pool.Close() }

func (s *PGStore) Save(ctx context.Context, snap *Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.Name, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (name, state, frame, saved_at, entity_count, body)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO UPDATE SET
		   state = EXCLUDED.state,
		   frame = EXCLUDED.frame,
		   saved_at = EXCLUDED.saved_at,
		   entity_count = EXCLUDED.entity_count,
		   body = EXCLUDED.body`,
		snap.Name, snap.State, int64(snap.Frame), snap.SavedAt, len(snap.Entities), body,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Name, err)
	}
	s.log.Debug("snapshot saved",
		zap.String("name", snap.Name),
		zap.Int("entities", len(snap.Entities)))
	return nil
}

func (s *PGStore) Load(ctx context.Context, name string) (*Snapshot, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM snapshots WHERE name = $1`, name,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return &snap, nil
}

func (s *PGStore) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func (s *PGStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return names, nil
}
