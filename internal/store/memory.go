package store

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/forecast-cli/internal/model"
)

// MemoryStore implements Store in process memory. Nothing survives a
// restart; it backs one-off CLI runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	sources   map[string]model.Source
	blacklist map[string]model.BlacklistEntry
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sources:   make(map[string]model.Source),
		blacklist: make(map[string]model.BlacklistEntry),
	}
}

func (s *MemoryStore) Migrate(_ context.Context) error { return nil }
func (s *MemoryStore) Close() error                    { return nil }

func (s *MemoryStore) CheckBlacklisted(_ context.Context, domains []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool)
	for _, d := range uniqueStrings(domains) {
		if _, ok := s.blacklist[d]; ok {
			out[d] = true
		}
	}
	return out, nil
}

func (s *MemoryStore) AddToBlacklist(_ context.Context, entries []model.BlacklistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range uniqueEntries(entries) {
		if _, ok := s.blacklist[e.Domain]; !ok {
			s.blacklist[e.Domain] = e
		}
	}
	return nil
}

// Blacklisted returns a snapshot of the blacklist.
func (s *MemoryStore) Blacklisted() []model.BlacklistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.BlacklistEntry, 0, len(s.blacklist))
	for _, e := range s.blacklist {
		out = append(out, e)
	}
	return out
}

func (s *MemoryStore) CheckExisting(_ context.Context, links []string) (map[string]model.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Source)
	for _, l := range uniqueStrings(links) {
		if src, ok := s.sources[l]; ok {
			out[l] = copySource(src)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetSource(_ context.Context, link string) (*model.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[link]
	if !ok {
		return nil, nil
	}
	c := copySource(src)
	return &c, nil
}

func (s *MemoryStore) AddSources(_ context.Context, sources []model.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, src := range uniqueSources(sources) {
		if _, ok := s.sources[src.Link]; ok {
			continue
		}
		src.Queries = sourceQueries(src)
		src.Date = dateOrUnknown(src.Date)
		src.CreatedAt, src.UpdatedAt = now, now
		s.sources[src.Link] = src
	}
	return nil
}

func (s *MemoryStore) UpdateSummary(_ context.Context, link, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[link]; ok {
		src.SummarizedContent = summary
		src.UpdatedAt = time.Now().UTC()
		s.sources[link] = src
	}
	return nil
}

func (s *MemoryStore) AddQueryToSource(_ context.Context, link, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[link]
	if !ok {
		return nil
	}
	src.Queries = append([]string(nil), src.Queries...)
	if src.AddQuery(query) {
		src.UpdatedAt = time.Now().UTC()
		s.sources[link] = src
	}
	return nil
}

func copySource(s model.Source) model.Source {
	s.Queries = append([]string(nil), s.Queries...)
	return s
}
