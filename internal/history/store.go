package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Entry is one completed analysis kept for later browsing.
type Entry struct {
	ID          int64           `json:"id"`
	ImageDigest string          `json:"imageDigest"`
	Brand       string          `json:"brand"`
	Material    string          `json:"material"`
	ColorName   string          `json:"colorName"`
	ColorHex    string          `json:"colorHex"`
	Weight      string          `json:"weight"`
	Confidence  float64         `json:"confidence"`
	Raw         json.RawMessage `json:"record"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Store archives completed records in Postgres. The schema is ensured
// lazily on first use so a cold database does not block startup.
type Store struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history db ping: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS analyses (
	id           BIGSERIAL PRIMARY KEY,
	image_digest TEXT NOT NULL,
	brand        TEXT NOT NULL DEFAULT '',
	material     TEXT NOT NULL DEFAULT '',
	color_name   TEXT NOT NULL DEFAULT '',
	color_hex    TEXT NOT NULL DEFAULT '',
	weight       TEXT NOT NULL DEFAULT '',
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	record       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS analyses_digest_idx ON analyses (image_digest);
`)
	})
	return s.schemaErr
}

func (s *Store) Save(ctx context.Context, e Entry) error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO analyses (image_digest, brand, material, color_name, color_hex, weight, confidence, record)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ImageDigest, e.Brand, e.Material, e.ColorName, e.ColorHex, e.Weight, e.Confidence, []byte(e.Raw))
	return err
}

func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, image_digest, brand, material, color_name, color_hex, weight, confidence, record, created_at
FROM analyses ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var raw []byte
		if err := rows.Scan(&e.ID, &e.ImageDigest, &e.Brand, &e.Material, &e.ColorName,
			&e.ColorHex, &e.Weight, &e.Confidence, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Raw = json.RawMessage(raw)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
