package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    canonical_url TEXT PRIMARY KEY,
    fingerprint   TEXT NOT NULL UNIQUE,
    source_id     TEXT NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    body          TEXT NOT NULL DEFAULT '',
    body_hash     TEXT NOT NULL,
    published_at  TIMESTAMPTZ,
    first_seen    TIMESTAMPTZ NOT NULL,
    last_seen     TIMESTAMPTZ NOT NULL,
    annotations   JSONB
);
CREATE INDEX IF NOT EXISTS articles_last_seen_idx ON articles (last_seen);
`

// PostgresStore persists deduplicated articles in Postgres. Row locks on the
// canonical URL give the same per-key atomicity the in-memory store gets
// from its shard locks.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.ArticleStore = (*PostgresStore)(nil)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.With("component", "postgres_store")}
}

// EnsureSchema creates the articles table when absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ingest applies one candidate with the same created/updated/unchanged
// semantics as the in-memory store.
func (s *PostgresStore) Ingest(ctx context.Context, c domain.RawCandidate) (domain.IngestResult, error) {
	key, err := domain.KeyOf(c)
	if err != nil {
		return "", fmt.Errorf("ingest candidate from %s: %w", c.SourceID, err)
	}

	seenAt := c.FetchedAt
	if seenAt.IsZero() {
		seenAt = time.Now().UTC()
	}

	// Losing an insert race surfaces as a unique violation; the second
	// pass then sees the committed row and takes the update path.
	for attempt := 0; ; attempt++ {
		res, err := s.tryIngest(ctx, key, c, seenAt)
		if err == nil {
			return res, nil
		}
		if attempt > 0 || !isUniqueViolation(err) {
			return "", err
		}
		s.logger.Debug("ingest lost insert race, retrying", "url", key.CanonicalURL)
	}
}

func (s *PostgresStore) tryIngest(ctx context.Context, key domain.CandidateKey, c domain.RawCandidate, seenAt time.Time) (domain.IngestResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin ingest: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prevHash string
	err = psql.Select("body_hash").
		From("articles").
		Where(sq.Eq{"canonical_url": key.CanonicalURL}).
		Suffix("FOR UPDATE").
		RunWith(tx).
		QueryRowContext(ctx).
		Scan(&prevHash)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		insert := psql.Insert("articles").
			Columns("canonical_url", "fingerprint", "source_id", "title", "body", "body_hash", "published_at", "first_seen", "last_seen").
			Values(key.CanonicalURL, string(key.Fingerprint), c.SourceID, c.Title, c.Body, key.BodyHash, nullableTime(c.PublishedAt), seenAt, seenAt)
		if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
			return "", fmt.Errorf("insert article: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("commit insert: %w", err)
		}
		return domain.IngestCreated, nil

	case err != nil:
		return "", fmt.Errorf("lookup article: %w", err)

	case prevHash == key.BodyHash:
		update := psql.Update("articles").
			Set("last_seen", sq.Expr("GREATEST(last_seen, ?)", seenAt)).
			Where(sq.Eq{"canonical_url": key.CanonicalURL})
		if _, err := update.RunWith(tx).ExecContext(ctx); err != nil {
			return "", fmt.Errorf("bump last_seen: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("commit bump: %w", err)
		}
		return domain.IngestUnchanged, nil

	default:
		update := psql.Update("articles").
			Set("fingerprint", string(key.Fingerprint)).
			Set("body_hash", key.BodyHash).
			Set("source_id", c.SourceID).
			Set("title", c.Title).
			Set("body", c.Body).
			Set("last_seen", sq.Expr("GREATEST(last_seen, ?)", seenAt)).
			Set("annotations", sq.Expr("CASE WHEN annotations IS NULL THEN NULL ELSE jsonb_set(annotations, '{stale}', 'true'::jsonb) END")).
			Where(sq.Eq{"canonical_url": key.CanonicalURL})
		if !c.PublishedAt.IsZero() {
			update = update.Set("published_at", c.PublishedAt)
		}
		if _, err := update.RunWith(tx).ExecContext(ctx); err != nil {
			return "", fmt.Errorf("supersede article: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("commit supersede: %w", err)
		}
		return domain.IngestUpdated, nil
	}
}

// Get returns the article stored under fp.
func (s *PostgresStore) Get(ctx context.Context, fp domain.Fingerprint) (domain.StoredArticle, error) {
	row := articleColumns().
		Where(sq.Eq{"fingerprint": string(fp)}).
		RunWith(s.db).
		QueryRowContext(ctx)

	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredArticle{}, fmt.Errorf("get %s: %w", fp, domain.ErrArticleNotFound)
	}
	if err != nil {
		return domain.StoredArticle{}, fmt.Errorf("get %s: %w", fp, err)
	}
	return a, nil
}

// Window returns articles whose effective time falls in [from, to], newest
// first.
func (s *PostgresStore) Window(ctx context.Context, from, to time.Time) ([]domain.StoredArticle, error) {
	rows, err := articleColumns().
		Where(sq.Expr("COALESCE(published_at, last_seen) BETWEEN ? AND ?", from, to)).
		OrderBy("COALESCE(published_at, last_seen) DESC", "fingerprint ASC").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("window query: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredArticle
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan window row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("window rows: %w", err)
	}
	return out, nil
}

// Annotate attaches analysis output, keeping relevance entries other clients
// already earned.
func (s *PostgresStore) Annotate(ctx context.Context, fp domain.Fingerprint, ann domain.Annotations) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin annotate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	err = psql.Select("annotations").
		From("articles").
		Where(sq.Eq{"fingerprint": string(fp)}).
		Suffix("FOR UPDATE").
		RunWith(tx).
		QueryRowContext(ctx).
		Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("annotate %s: %w", fp, domain.ErrArticleNotFound)
	}
	if err != nil {
		return fmt.Errorf("annotate lookup: %w", err)
	}

	merged := ann
	if len(raw) > 0 {
		var prior domain.Annotations
		if err := json.Unmarshal(raw, &prior); err == nil && prior.RelevanceByClient != nil {
			combined := make(map[string]float64, len(prior.RelevanceByClient)+len(ann.RelevanceByClient))
			for client, score := range prior.RelevanceByClient {
				combined[client] = score
			}
			for client, score := range ann.RelevanceByClient {
				combined[client] = score
			}
			merged.RelevanceByClient = combined
		}
	}
	if merged.AnalyzedAt.IsZero() {
		merged.AnalyzedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal annotations: %w", err)
	}

	update := psql.Update("articles").
		Set("annotations", payload).
		Where(sq.Eq{"fingerprint": string(fp)})
	if _, err := update.RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("store annotations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit annotations: %w", err)
	}
	return nil
}

// Count reports how many articles the store holds.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := psql.Select("COUNT(*)").
		From("articles").
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

func articleColumns() sq.SelectBuilder {
	return psql.Select(
		"canonical_url", "fingerprint", "source_id", "title", "body",
		"body_hash", "published_at", "first_seen", "last_seen", "annotations",
	).From("articles")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.StoredArticle, error) {
	var (
		a           domain.StoredArticle
		fingerprint string
		publishedAt sql.NullTime
		annotations []byte
	)
	err := row.Scan(
		&a.CanonicalURL, &fingerprint, &a.SourceID, &a.Title, &a.Body,
		&a.BodyHash, &publishedAt, &a.FirstSeen, &a.LastSeen, &annotations,
	)
	if err != nil {
		return domain.StoredArticle{}, err
	}

	a.Fingerprint = domain.Fingerprint(fingerprint)
	if publishedAt.Valid {
		a.PublishedAt = publishedAt.Time
	}
	if len(annotations) > 0 {
		var ann domain.Annotations
		if err := json.Unmarshal(annotations, &ann); err != nil {
			return domain.StoredArticle{}, fmt.Errorf("decode annotations: %w", err)
		}
		a.Annotations = &ann
	}
	return a, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
