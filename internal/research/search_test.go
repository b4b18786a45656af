package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/pkg/jina"
	"github.com/sells-group/forecast-cli/pkg/serper"
)

func TestSerperSearcher_Verticals(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body []map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		key := "news"
		if r.URL.Path == "/search" {
			key = "organic"
		}
		resp := make([]map[string]any, len(body))
		for i, q := range body {
			resp[i] = map[string]any{key: []map[string]any{
				{"title": "T " + q["q"], "link": "https://" + q["q"] + ".com/a", "snippet": "s", "date": "2 days ago"},
			}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	s := NewSerperSearcher(serper.NewClient("key", serper.WithBaseURL(srv.URL)))
	assert.Equal(t, "serper", s.Name())

	got, err := s.Search(context.Background(), model.SearchTypeNews, []string{"fed", "ecb"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.SearchResult{Link: "https://fed.com/a", Title: "T fed", Snippet: "s", Date: "2 days ago"}, got[0][0])
	assert.Equal(t, "https://ecb.com/a", got[1][0].Link)

	got, err = s.Search(context.Background(), model.SearchTypeWeb, []string{"boe"})
	require.NoError(t, err)
	assert.Equal(t, "https://boe.com/a", got[0][0].Link)

	assert.Equal(t, []string{"/news", "/search"}, paths)
}

func TestSerperSearcher_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	s := NewSerperSearcher(serper.NewClient("key", serper.WithBaseURL(srv.URL)))
	_, err := s.Search(context.Background(), model.SearchTypeNews, []string{"fed"})
	assert.Error(t, err)
}

func TestJinaSearcher(t *testing.T) {
	client := &fakeJina{
		results: map[string][]jina.SearchResult{
			"fed": {{Title: "Fed", URL: "https://fed.com/a", Description: "d", PublishedTime: "2024-03-20"}},
		},
		errs: map[string]error{"ecb": eris.New("status 500")},
	}
	s := NewJinaSearcher(client, 2)
	assert.Equal(t, "jina", s.Name())

	got, err := s.Search(context.Background(), model.SearchTypeNews, []string{"fed", "ecb", "boe"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []model.SearchResult{{Link: "https://fed.com/a", Title: "Fed", Snippet: "d", Date: "2024-03-20"}}, got[0])
	assert.Nil(t, got[1])
	assert.Empty(t, got[2])
}

func TestJinaSearcher_AllFail(t *testing.T) {
	client := &fakeJina{errs: map[string]error{"fed": eris.New("status 500")}}
	_, err := NewJinaSearcher(client, 0).Search(context.Background(), model.SearchTypeWeb, []string{"fed"})
	assert.Error(t, err)
}
