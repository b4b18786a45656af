package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forecast-cli/internal/model"
)

func TestMemoryStore_SourcesInsertOrSkip(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	first := testSource("https://a.com/1")
	require.NoError(t, st.AddSources(ctx, []model.Source{first}))

	second := first
	second.Title = "Replaced"
	require.NoError(t, st.AddSources(ctx, []model.Source{second}))

	src, err := st.GetSource(ctx, first.Link)
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, first.Title, src.Title)
	assert.Equal(t, []string{"fed rate cut"}, src.Queries)
}

func TestMemoryStore_QueriesAreCopied(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	require.NoError(t, st.AddSources(ctx, []model.Source{testSource("https://a.com/1")}))

	got, err := st.CheckExisting(ctx, []string{"https://a.com/1"})
	require.NoError(t, err)
	src := got["https://a.com/1"]
	src.Queries[0] = "mutated"

	again, err := st.GetSource(ctx, "https://a.com/1")
	require.NoError(t, err)
	assert.Equal(t, []string{"fed rate cut"}, again.Queries)
}

func TestMemoryStore_SummaryAndQueries(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	require.NoError(t, st.AddSources(ctx, []model.Source{testSource("https://a.com/1")}))

	require.NoError(t, st.UpdateSummary(ctx, "https://a.com/1", "short"))
	require.NoError(t, st.AddQueryToSource(ctx, "https://a.com/1", "inflation"))
	require.NoError(t, st.AddQueryToSource(ctx, "https://a.com/1", "inflation"))
	require.NoError(t, st.AddQueryToSource(ctx, "https://missing.com", "inflation"))

	src, err := st.GetSource(ctx, "https://a.com/1")
	require.NoError(t, err)
	assert.Equal(t, "short", src.SummarizedContent)
	assert.Equal(t, []string{"fed rate cut", "inflation"}, src.Queries)

	missing, err := st.GetSource(ctx, "https://missing.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStore_Blacklist(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	require.NoError(t, st.AddToBlacklist(ctx, []model.BlacklistEntry{
		{Domain: "bad.com", URL: "https://bad.com/a", ErrorMessage: "first"},
		{Domain: "bad.com", URL: "https://bad.com/b", ErrorMessage: "second"},
	}))
	require.NoError(t, st.AddToBlacklist(ctx, []model.BlacklistEntry{
		{Domain: "bad.com", URL: "https://bad.com/c", ErrorMessage: "third"},
	}))

	got, err := st.CheckBlacklisted(ctx, []string{"bad.com", "good.com"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"bad.com": true}, got)

	entries := st.Blacklisted()
	require.Len(t, entries, 1)
	assert.Equal(t, "first", entries[0].ErrorMessage)
}
