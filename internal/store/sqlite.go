package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/forecast-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sources (
	link               TEXT PRIMARY KEY,
	title              TEXT NOT NULL DEFAULT '',
	snippet            TEXT NOT NULL DEFAULT '',
	query              TEXT NOT NULL DEFAULT '',
	queries            TEXT NOT NULL DEFAULT '[]',
	date               TEXT NOT NULL DEFAULT 'Unknown',
	favicon            TEXT NOT NULL DEFAULT '',
	news               INTEGER NOT NULL DEFAULT 0,
	raw_content        TEXT NOT NULL DEFAULT '',
	summarized_content TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS blacklisted_domains (
	domain        TEXT PRIMARY KEY,
	url           TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CheckBlacklisted(ctx context.Context, domains []string) (map[string]bool, error) {
	domains = uniqueStrings(domains)
	out := make(map[string]bool)
	if len(domains) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT domain FROM blacklisted_domains WHERE domain IN (`+placeholders(len(domains))+`)`,
		toArgs(domains)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: check blacklisted")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan blacklisted")
		}
		out[d] = true
	}
	return out, eris.Wrap(rows.Err(), "sqlite: check blacklisted iterate")
}

func (s *SQLiteStore) AddToBlacklist(ctx context.Context, entries []model.BlacklistEntry) error {
	entries = uniqueEntries(entries)
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin blacklist tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO blacklisted_domains (domain, url, error_message, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(domain) DO NOTHING`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare blacklist insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Domain, e.URL, e.ErrorMessage, now); err != nil {
			return eris.Wrapf(err, "sqlite: blacklist %s", e.Domain)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit blacklist")
}

const sqliteSourceColumns = `link, title, snippet, query, queries, date, favicon, news, raw_content, summarized_content, created_at, updated_at`

func (s *SQLiteStore) CheckExisting(ctx context.Context, links []string) (map[string]model.Source, error) {
	links = uniqueStrings(links)
	out := make(map[string]model.Source)
	if len(links) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSourceColumns+` FROM sources WHERE link IN (`+placeholders(len(links))+`)`,
		toArgs(links)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: check existing")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		src, err := scanSQLiteSource(rows)
		if err != nil {
			return nil, err
		}
		out[src.Link] = *src
	}
	return out, eris.Wrap(rows.Err(), "sqlite: check existing iterate")
}

func (s *SQLiteStore) GetSource(ctx context.Context, link string) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteSourceColumns+` FROM sources WHERE link = ?`, link)
	src, err := scanSQLiteSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return src, err
}

func (s *SQLiteStore) AddSources(ctx context.Context, sources []model.Source) error {
	sources = uniqueSources(sources)
	if len(sources) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin sources tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sources (`+sqliteSourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(link) DO NOTHING`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare source insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, src := range sources {
		queriesJSON, err := json.Marshal(sourceQueries(src))
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal queries")
		}
		_, err = stmt.ExecContext(ctx,
			src.Link, src.Title, src.Snippet, src.Query, string(queriesJSON), dateOrUnknown(src.Date),
			src.Favicon, src.News, src.RawContent, nullString(src.SummarizedContent), now, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert source %s", src.Link)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit sources")
}

func (s *SQLiteStore) UpdateSummary(ctx context.Context, link, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sources SET summarized_content = ?, updated_at = ? WHERE link = ?`,
		nullString(summary), time.Now().UTC(), link,
	)
	return eris.Wrapf(err, "sqlite: update summary %s", link)
}

func (s *SQLiteStore) AddQueryToSource(ctx context.Context, link, query string) error {
	if query == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sources SET queries = json_insert(queries, '$[#]', ?), updated_at = ?
		 WHERE link = ? AND NOT EXISTS (SELECT 1 FROM json_each(sources.queries) WHERE value = ?)`,
		query, time.Now().UTC(), link, query,
	)
	return eris.Wrapf(err, "sqlite: add query to %s", link)
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteSource(row scannable) (*model.Source, error) {
	var src model.Source
	var queriesJSON string
	var summary sql.NullString

	err := row.Scan(&src.Link, &src.Title, &src.Snippet, &src.Query, &queriesJSON, &src.Date,
		&src.Favicon, &src.News, &src.RawContent, &summary, &src.CreatedAt, &src.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan source")
	}
	if err := json.Unmarshal([]byte(queriesJSON), &src.Queries); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal queries")
	}
	src.SummarizedContent = summary.String
	return &src, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func dateOrUnknown(d string) string {
	if d == "" {
		return model.UnknownDate
	}
	return d
}
