package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"neurodoc/internal/domain"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS namespaces (
	name       TEXT PRIMARY KEY,
	dimension  INT NOT NULL,
	metric     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS chunks (
	namespace   TEXT NOT NULL REFERENCES namespaces(name),
	id          TEXT NOT NULL,
	doc_id      TEXT NOT NULL,
	chunk_index INT NOT NULL,
	content     TEXT NOT NULL,
	embedding   vector NOT NULL,
	PRIMARY KEY (namespace, id)
);`

// foreign_key_violation
const fkViolation = "23503"

// Storage keeps namespaces and chunk vectors in Postgres with the pgvector extension.
type Storage struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Storage, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping database: %v", domain.ErrStoreUnavailable, err)
	}
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Migrate creates the extension and tables when missing.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Storage) ListNamespaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM namespaces ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list namespaces: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scan namespace: %v", domain.ErrStoreUnavailable, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list namespaces: %v", domain.ErrStoreUnavailable, err)
	}
	return names, nil
}

func (s *Storage) CreateNamespace(ctx context.Context, spec domain.NamespaceSpec) error {
	if m := strings.ToLower(spec.Metric); m != "" && m != "cosine" {
		return fmt.Errorf("%w: metric %q not supported", domain.ErrStoreUnavailable, spec.Metric)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO namespaces (name, dimension, metric) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
		spec.Name, spec.Dimension, "cosine")
	if err != nil {
		return fmt.Errorf("%w: create namespace: %v", domain.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: create namespace: %v", domain.ErrStoreUnavailable, err)
	}
	if n == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// Upsert writes all records in one transaction, overwriting rows with the same id.
func (s *Storage) Upsert(ctx context.Context, namespace string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (namespace, id, doc_id, chunk_index, content, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6::vector)
		 ON CONFLICT (namespace, id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", domain.ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			namespace, r.ID, r.Metadata.DocID, r.Metadata.ChunkIndex, r.Metadata.Text, vectorToString(r.Vector),
		); err != nil {
			return classify("insert chunk", namespace, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Query performs a cosine similarity search within one namespace.
func (s *Storage) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	vectorStr := vectorToString(vector)
	query := `SELECT id, doc_id, chunk_index, content, 1 - (embedding <=> $1::vector) AS similarity
	          FROM chunks
	          WHERE namespace = $2
	          ORDER BY embedding <=> $1::vector, id
	          LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, vectorStr, namespace, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: search similar: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var m domain.Match
		if err := rows.Scan(&m.ID, &m.Metadata.DocID, &m.Metadata.ChunkIndex, &m.Metadata.Text, &m.Score); err != nil {
			return nil, fmt.Errorf("%w: scan similar: %v", domain.ErrStoreUnavailable, err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search similar: %v", domain.ErrStoreUnavailable, err)
	}
	if len(matches) > 0 {
		return matches, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM namespaces WHERE name = $1)`, namespace).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%w: check namespace: %v", domain.ErrStoreUnavailable, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrNamespaceNotFound, namespace)
	}
	return nil, nil
}

func classify(op, namespace string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == fkViolation {
		return fmt.Errorf("%w: %s", domain.ErrNamespaceNotFound, namespace)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

// vectorToString converts a float32 slice to pgvector text format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.FormatFloat(float64(val), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
