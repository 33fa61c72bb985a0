package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oriys/folio/internal/domain"
)

// PostgresService stores one JSONB document per domain. Writes run in a
// transaction that locks the domain row, so concurrent writes to the same
// domain apply one after the other.
type PostgresService struct {
	pool    *pgxpool.Pool
	applier Applier
}

func NewPostgresService(ctx context.Context, dsn string) (*PostgresService, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &PostgresService{pool: pool, applier: DefaultApplier()}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresService) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresService) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres not initialized")
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresService) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS content_documents (
		domain TEXT PRIMARY KEY,
		body JSONB NOT NULL,
		revision BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresService) Fetch(ctx context.Context, d domain.Domain) (json.RawMessage, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM content_documents WHERE domain = $1`, string(d)).Scan(&body)
	if err == pgx.ErrNoRows {
		return domain.EmptyDocument(d), nil
	}
	if err != nil {
		return nil, &NetworkError{Domain: d, Op: "fetch", Err: err}
	}
	return body, nil
}

func (s *PostgresService) Write(ctx context.Context, d domain.Domain, op Op) (json.RawMessage, error) {
	if err := op.Check(d); err != nil {
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, &NetworkError{Domain: d, Op: string(op.Kind), Err: err}
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `INSERT INTO content_documents (domain, body, updated_at)
		VALUES ($1, $2, $3) ON CONFLICT (domain) DO NOTHING`,
		string(d), []byte(domain.EmptyDocument(d)), now); err != nil {
		return nil, &NetworkError{Domain: d, Op: string(op.Kind), Err: err}
	}

	var current []byte
	if err := tx.QueryRow(ctx, `SELECT body FROM content_documents WHERE domain = $1 FOR UPDATE`,
		string(d)).Scan(&current); err != nil {
		return nil, &NetworkError{Domain: d, Op: string(op.Kind), Err: err}
	}

	next, err := s.applier.Apply(d, current, op)
	if err != nil {
		if IsValidation(err) || IsNotFound(err) {
			return nil, err
		}
		return nil, &NetworkError{Domain: d, Op: string(op.Kind), Err: err}
	}

	if _, err := tx.Exec(ctx, `UPDATE content_documents
		SET body = $2, revision = revision + 1, updated_at = $3 WHERE domain = $1`,
		string(d), []byte(next), now); err != nil {
		return nil, &NetworkError{Domain: d, Op: string(op.Kind), Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, &NetworkError{Domain: d, Op: string(op.Kind), Err: errors.Join(errors.New("commit"), err)}
	}
	return next, nil
}
