package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/db"
	"github.com/sells-group/forecast-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// pgQueries are the hot-path statements. pgx caches their prepared form per
// connection.
var pgQueries = map[string]string{
	"check_blacklisted": `SELECT domain FROM blacklisted_domains WHERE domain = ANY($1)`,
	"check_existing":    `SELECT ` + pgSourceColumns + ` FROM sources WHERE link = ANY($1)`,
	"get_source":        `SELECT ` + pgSourceColumns + ` FROM sources WHERE link = $1`,
	"update_summary":    `UPDATE sources SET summarized_content = $1, updated_at = $2 WHERE link = $3`,
	"add_query":         `UPDATE sources SET queries = array_append(queries, $1), updated_at = $2 WHERE link = $3 AND NOT ($1 = ANY(queries))`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sources (
	link               TEXT PRIMARY KEY,
	title              TEXT NOT NULL DEFAULT '',
	snippet            TEXT NOT NULL DEFAULT '',
	query              TEXT NOT NULL DEFAULT '',
	queries            TEXT[] NOT NULL DEFAULT '{}',
	date               TEXT NOT NULL DEFAULT 'Unknown',
	favicon            TEXT NOT NULL DEFAULT '',
	news               BOOLEAN NOT NULL DEFAULT false,
	raw_content        TEXT NOT NULL DEFAULT '',
	summarized_content TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS blacklisted_domains (
	domain        TEXT PRIMARY KEY,
	url           TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sources_updated_at ON sources(updated_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CheckBlacklisted(ctx context.Context, domains []string) (map[string]bool, error) {
	domains = uniqueStrings(domains)
	out := make(map[string]bool)
	if len(domains) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, pgQueries["check_blacklisted"], domains)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: check blacklisted")
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, eris.Wrap(err, "postgres: collect blacklisted")
	}
	for _, d := range found {
		out[d] = true
	}
	return out, nil
}

func (s *PostgresStore) AddToBlacklist(ctx context.Context, entries []model.BlacklistEntry) error {
	entries = uniqueEntries(entries)
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.Domain, e.URL, e.ErrorMessage, now})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "blacklisted_domains",
		Columns:      []string{"domain", "url", "error_message", "created_at"},
		ConflictKeys: []string{"domain"},
		IgnoreDups:   true,
	}, rows)
	return eris.Wrap(err, "postgres: add to blacklist")
}

const pgSourceColumns = `link, title, snippet, query, queries, date, favicon, news, raw_content, summarized_content, created_at, updated_at`

var pgSourceColumnList = []string{
	"link", "title", "snippet", "query", "queries", "date", "favicon", "news",
	"raw_content", "summarized_content", "created_at", "updated_at",
}

func (s *PostgresStore) CheckExisting(ctx context.Context, links []string) (map[string]model.Source, error) {
	links = uniqueStrings(links)
	out := make(map[string]model.Source)
	if len(links) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, pgQueries["check_existing"], links)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: check existing")
	}
	defer rows.Close()

	for rows.Next() {
		src, err := scanPGSource(rows)
		if err != nil {
			return nil, err
		}
		out[src.Link] = *src
	}
	return out, eris.Wrap(rows.Err(), "postgres: check existing iterate")
}

func (s *PostgresStore) GetSource(ctx context.Context, link string) (*model.Source, error) {
	src, err := scanPGSource(s.pool.QueryRow(ctx, pgQueries["get_source"], link))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return src, err
}

func (s *PostgresStore) AddSources(ctx context.Context, sources []model.Source) error {
	sources = uniqueSources(sources)
	if len(sources) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(sources))
	for _, src := range sources {
		var summary *string
		if src.SummarizedContent != "" {
			summary = &src.SummarizedContent
		}
		rows = append(rows, []any{
			src.Link, src.Title, src.Snippet, src.Query, sourceQueries(src), dateOrUnknown(src.Date),
			src.Favicon, src.News, src.RawContent, summary, now, now,
		})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "sources",
		Columns:      pgSourceColumnList,
		ConflictKeys: []string{"link"},
		IgnoreDups:   true,
	}, rows)
	return eris.Wrap(err, "postgres: add sources")
}

func (s *PostgresStore) UpdateSummary(ctx context.Context, link, summary string) error {
	var v *string
	if summary != "" {
		v = &summary
	}
	_, err := s.pool.Exec(ctx, pgQueries["update_summary"], v, time.Now().UTC(), link)
	return eris.Wrapf(err, "postgres: update summary %s", link)
}

func (s *PostgresStore) AddQueryToSource(ctx context.Context, link, query string) error {
	if query == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, pgQueries["add_query"], query, time.Now().UTC(), link)
	return eris.Wrapf(err, "postgres: add query to %s", link)
}

func scanPGSource(row pgx.Row) (*model.Source, error) {
	var src model.Source
	var summary *string

	err := row.Scan(&src.Link, &src.Title, &src.Snippet, &src.Query, &src.Queries, &src.Date,
		&src.Favicon, &src.News, &src.RawContent, &summary, &src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan source")
	}
	if summary != nil {
		src.SummarizedContent = *summary
	}
	return &src, nil
}
