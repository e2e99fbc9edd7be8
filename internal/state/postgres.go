package state

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/edvin/landingzone/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore keeps bundles in a Postgres database, for shared state
// with transactional writes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and migrates the state schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if err := runMigrations(databaseURL); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse state db config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create state db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping state db: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run state migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveHubOutputs(ctx context.Context, outputs *model.HubOutputs) error {
	data, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("encode hub outputs: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO hub_outputs (environment, data, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (environment) DO UPDATE SET data = $2, updated_at = now()`,
		outputs.Environment, data,
	)
	if err != nil {
		return fmt.Errorf("save hub outputs: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadHubOutputs(ctx context.Context, environment string) (*model.HubOutputs, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		"SELECT data FROM hub_outputs WHERE environment = $1", environment,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("environment %s: %w", environment, ErrHubNotProvisioned)
	}
	if err != nil {
		return nil, fmt.Errorf("load hub outputs: %w", err)
	}
	var outputs model.HubOutputs
	if err := json.Unmarshal(data, &outputs); err != nil {
		return nil, fmt.Errorf("parse hub outputs: %w", err)
	}
	return &outputs, nil
}

func (s *PostgresStore) DeleteHubOutputs(ctx context.Context, environment string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM hub_outputs WHERE environment = $1", environment)
	if err != nil {
		return fmt.Errorf("delete hub outputs: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveSpokeOutputs(ctx context.Context, outputs *model.SpokeOutputs) error {
	data, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("encode spoke outputs: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO spoke_outputs (environment, domain, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (environment, domain) DO UPDATE SET data = $3, updated_at = now()`,
		outputs.Environment, outputs.Domain, data,
	)
	if err != nil {
		return fmt.Errorf("save spoke outputs: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadSpokeOutputs(ctx context.Context, environment, domain string) (*model.SpokeOutputs, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		"SELECT data FROM spoke_outputs WHERE environment = $1 AND domain = $2",
		environment, domain,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s spoke in %s: %w", domain, environment, ErrSpokeNotProvisioned)
	}
	if err != nil {
		return nil, fmt.Errorf("load spoke outputs: %w", err)
	}
	var outputs model.SpokeOutputs
	if err := json.Unmarshal(data, &outputs); err != nil {
		return nil, fmt.Errorf("parse spoke outputs: %w", err)
	}
	return &outputs, nil
}

func (s *PostgresStore) ListSpokeDomains(ctx context.Context, environment string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT domain FROM spoke_outputs WHERE environment = $1", environment)
	if err != nil {
		return nil, fmt.Errorf("list spokes: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan spoke domain: %w", err)
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spokes: %w", err)
	}
	sort.Strings(domains)
	return domains, nil
}

func (s *PostgresStore) DeleteSpokeOutputs(ctx context.Context, environment, domain string) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM spoke_outputs WHERE environment = $1 AND domain = $2", environment, domain)
	if err != nil {
		return fmt.Errorf("delete spoke outputs: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
