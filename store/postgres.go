package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"protrack/model"
)

const datasetsSchema = `
CREATE TABLE IF NOT EXISTS datasets (
	name       TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	version    TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres stores each logical table as one row in the datasets relation,
// keyed by table name and guarded by the content-hash version column.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, verifies the connection and creates the datasets
// relation if needed.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w: %v", model.ErrStoreUnavailable, err)
	}
	if _, err := pool.Exec(ctx, datasetsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create datasets relation: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) ReadTable(ctx context.Context, name string) (*Table, error) {
	var payload, version string
	err := p.pool.QueryRow(ctx,
		`SELECT payload, version FROM datasets WHERE name = $1`, name,
	).Scan(&payload, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("table %s: %w", name, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w: %v", name, model.ErrStoreUnavailable, err)
	}
	header, rows, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	return &Table{Name: name, Header: header, Rows: rows, Version: version}, nil
}

func (p *Postgres) WriteTable(ctx context.Context, tbl *Table, expectedVersion string) error {
	payload, err := Encode(tbl.Header, tbl.Rows)
	if err != nil {
		return err
	}
	newVersion := Version(payload)

	if expectedVersion == "" {
		tag, err := p.pool.Exec(ctx,
			`INSERT INTO datasets (name, payload, version) VALUES ($1, $2, $3)
			 ON CONFLICT (name) DO NOTHING`,
			tbl.Name, payload, newVersion)
		if err != nil {
			return fmt.Errorf("create table %s: %w: %v", tbl.Name, model.ErrStoreUnavailable, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("table %s already exists: %w", tbl.Name, model.ErrConflict)
		}
		tbl.Version = newVersion
		return nil
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE datasets SET payload = $2, version = $3, updated_at = now()
		 WHERE name = $1 AND version = $4`,
		tbl.Name, payload, newVersion, expectedVersion)
	if err != nil {
		return fmt.Errorf("write table %s: %w: %v", tbl.Name, model.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the version moved or the row vanished; both mean the
		// caller must re-read and recompute.
		return fmt.Errorf("table %s: %w", tbl.Name, model.ErrConflict)
	}
	tbl.Version = newVersion
	return nil
}
