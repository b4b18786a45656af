package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/model"
)

const redisKeyPrefix = "forecast:"

func sourceKey(link string) string     { return redisKeyPrefix + "source:" + link }
func queriesKey(link string) string    { return redisKeyPrefix + "source:" + link + ":queries" }
func blacklistKey(domain string) string { return redisKeyPrefix + "blacklist:" + domain }

// RedisStore implements Store on Redis. Each source is a JSON value; its
// query associations live in a companion set so additions are atomic.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects to the Redis server at addr.
func NewRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "redis: ping")
	}
	return &RedisStore{client: client}, nil
}

// Migrate is a no-op; Redis needs no schema.
func (s *RedisStore) Migrate(_ context.Context) error { return nil }

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) CheckBlacklisted(ctx context.Context, domains []string) (map[string]bool, error) {
	domains = uniqueStrings(domains)
	out := make(map[string]bool)
	if len(domains) == 0 {
		return out, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(domains))
	for i, d := range domains {
		cmds[i] = pipe.Exists(ctx, blacklistKey(d))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, eris.Wrap(err, "redis: check blacklisted")
	}
	for i, cmd := range cmds {
		if cmd.Val() > 0 {
			out[domains[i]] = true
		}
	}
	return out, nil
}

func (s *RedisStore) AddToBlacklist(ctx context.Context, entries []model.BlacklistEntry) error {
	entries = uniqueEntries(entries)
	if len(entries) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return eris.Wrap(err, "redis: marshal blacklist entry")
		}
		pipe.SetNX(ctx, blacklistKey(e.Domain), data, 0)
	}
	_, err := pipe.Exec(ctx)
	return eris.Wrap(err, "redis: add to blacklist")
}

// redisSource is the stored JSON form. Queries live in the companion set.
type redisSource struct {
	Link              string    `json:"link"`
	Title             string    `json:"title"`
	Snippet           string    `json:"snippet,omitempty"`
	Query             string    `json:"query"`
	Date              string    `json:"date"`
	Favicon           string    `json:"favicon,omitempty"`
	News              bool      `json:"news"`
	RawContent        string    `json:"raw_content"`
	SummarizedContent *string   `json:"summarized_content"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func toRedisSource(s model.Source, now time.Time) redisSource {
	r := redisSource{
		Link:       s.Link,
		Title:      s.Title,
		Snippet:    s.Snippet,
		Query:      s.Query,
		Date:       dateOrUnknown(s.Date),
		Favicon:    s.Favicon,
		News:       s.News,
		RawContent: s.RawContent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if s.SummarizedContent != "" {
		summary := s.SummarizedContent
		r.SummarizedContent = &summary
	}
	return r
}

func (r redisSource) source(queries []string) model.Source {
	s := model.Source{
		Link:       r.Link,
		Title:      r.Title,
		Snippet:    r.Snippet,
		Query:      r.Query,
		Queries:    queries,
		Date:       r.Date,
		Favicon:    r.Favicon,
		News:       r.News,
		RawContent: r.RawContent,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.SummarizedContent != nil {
		s.SummarizedContent = *r.SummarizedContent
	}
	return s
}

func (s *RedisStore) CheckExisting(ctx context.Context, links []string) (map[string]model.Source, error) {
	links = uniqueStrings(links)
	out := make(map[string]model.Source)
	if len(links) == 0 {
		return out, nil
	}

	pipe := s.client.Pipeline()
	gets := make([]*redis.StringCmd, len(links))
	members := make([]*redis.StringSliceCmd, len(links))
	for i, l := range links {
		gets[i] = pipe.Get(ctx, sourceKey(l))
		members[i] = pipe.SMembers(ctx, queriesKey(l))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, eris.Wrap(err, "redis: check existing")
	}

	for i, l := range links {
		data, err := gets[i].Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "redis: get source %s", l)
		}
		var rs redisSource
		if err := json.Unmarshal(data, &rs); err != nil {
			return nil, eris.Wrapf(err, "redis: unmarshal source %s", l)
		}
		out[l] = rs.source(members[i].Val())
	}
	return out, nil
}

func (s *RedisStore) GetSource(ctx context.Context, link string) (*model.Source, error) {
	found, err := s.CheckExisting(ctx, []string{link})
	if err != nil {
		return nil, err
	}
	src, ok := found[link]
	if !ok {
		return nil, nil
	}
	return &src, nil
}

func (s *RedisStore) AddSources(ctx context.Context, sources []model.Source) error {
	sources = uniqueSources(sources)
	if len(sources) == 0 {
		return nil
	}

	now := time.Now().UTC()
	pipe := s.client.Pipeline()
	added := make([]*redis.BoolCmd, len(sources))
	for i, src := range sources {
		data, err := json.Marshal(toRedisSource(src, now))
		if err != nil {
			return eris.Wrap(err, "redis: marshal source")
		}
		added[i] = pipe.SetNX(ctx, sourceKey(src.Link), data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return eris.Wrap(err, "redis: add sources")
	}

	pipe = s.client.Pipeline()
	for i, src := range sources {
		qs := sourceQueries(src)
		if !added[i].Val() || len(qs) == 0 {
			continue
		}
		pipe.SAdd(ctx, queriesKey(src.Link), toArgs(qs)...)
	}
	_, err := pipe.Exec(ctx)
	return eris.Wrap(err, "redis: add source queries")
}

func (s *RedisStore) UpdateSummary(ctx context.Context, link, summary string) error {
	key := sourceKey(link)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var rs redisSource
		if err := json.Unmarshal(data, &rs); err != nil {
			return err
		}
		rs.SummarizedContent = nil
		if summary != "" {
			rs.SummarizedContent = &summary
		}
		rs.UpdatedAt = time.Now().UTC()
		updated, err := json.Marshal(rs)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
	return eris.Wrapf(err, "redis: update summary %s", link)
}

func (s *RedisStore) AddQueryToSource(ctx context.Context, link, query string) error {
	if query == "" {
		return nil
	}
	n, err := s.client.Exists(ctx, sourceKey(link)).Result()
	if err != nil {
		return eris.Wrapf(err, "redis: add query to %s", link)
	}
	if n == 0 {
		return nil
	}
	return eris.Wrapf(s.client.SAdd(ctx, queriesKey(link), query).Err(), "redis: add query to %s", link)
}
