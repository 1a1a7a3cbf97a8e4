package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CitationMap/internal/models"
	"CitationMap/internal/platform"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.CitationDelay = 0
	cfg.AuthorDelay = 0
	cfg.RateLimitPerSecond = 0
	return cfg
}

func decode(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

const page0 = `{
  "organic_results": [
    {"title": "Fallback Paper", "publication_info": {"summary": "F Zhao, G Wu - Cell, 2020",
      "authors": [{"name": "F Zhao", "author_id": "FFF"}, {"name": "G Wu"}]}},
    {"title": "Orphan Paper", "publication_info": {"summary": "H Kim - arXiv, 2021"}}
  ],
  "serpapi_pagination": {"next": "https://serpapi.com/search.json?cites=77&engine=google_scholar&start=100"}
}`

const page1 = `{"organic_results": [
  {"title": "Last Paper", "publication_info": {"authors": [{"name": "I Park", "author_id": "III"}]}}
]}`

func TestCitingAuthorsPaginates(t *testing.T) {
	var calls []map[string]string
	c, err := NewClient(testConfig(), WithSearchFunc(func(_ context.Context, p map[string]string) (map[string]interface{}, error) {
		calls = append(calls, p)
		if p["start"] == "100" {
			return decode(t, page1), nil
		}
		return decode(t, page0), nil
	}))
	require.NoError(t, err)

	entries, err := c.CitingAuthors(context.Background(), "77")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "google_scholar", calls[0]["engine"])
	assert.Equal(t, "100", calls[0]["num"])
	assert.Equal(t, "77", calls[0]["cites"])

	assert.Equal(t, []models.CitingEntry{
		{AuthorID: "FFF", AuthorName: "F Zhao", PaperTitle: "Fallback Paper"},
		{AuthorID: models.NoAuthorFound, AuthorName: "H Kim", PaperTitle: "Orphan Paper"},
		{AuthorID: "III", AuthorName: "I Park", PaperTitle: "Last Paper"},
	}, entries)
}

func TestCitingAuthorsEmptyResult(t *testing.T) {
	c, err := NewClient(testConfig(), WithSearchFunc(func(context.Context, map[string]string) (map[string]interface{}, error) {
		return map[string]interface{}{"error": "Google hasn't returned any results for this query."}, nil
	}))
	require.NoError(t, err)

	entries, err := c.CitingAuthors(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCitingAuthorsAPIError(t *testing.T) {
	c, err := NewClient(testConfig(), WithSearchFunc(func(context.Context, map[string]string) (map[string]interface{}, error) {
		return map[string]interface{}{"error": "Your account has run out of searches."}, nil
	}))
	require.NoError(t, err)

	_, err = c.CitingAuthors(context.Background(), "1")
	assert.ErrorContains(t, err, "run out of searches")
}

func TestNotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	called := false
	c, err := NewClient(cfg, WithSearchFunc(func(context.Context, map[string]string) (map[string]interface{}, error) {
		called = true
		return nil, nil
	}))
	require.NoError(t, err)

	_, err = c.CitingAuthors(context.Background(), "1")
	assert.True(t, errors.Is(err, ErrNotConfigured))
	_, err = c.AuthorAffiliation(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrNotConfigured))
	assert.False(t, called)
}

func TestAuthorAffiliationFieldOrder(t *testing.T) {
	cases := map[string]string{
		`{"author": {"name": "A", "affiliations": "Stanford University"}}`: "Stanford University",
		`{"author": {"name": "A", "institution": "ETH Zurich"}}`:           "ETH Zurich",
		`{"organization": "Tsinghua University"}`:                          "Tsinghua University",
		`{"author": {"name": "A"}}`:                                        "",
	}
	for body, want := range cases {
		c, err := NewClient(testConfig(), WithSearchFunc(func(_ context.Context, p map[string]string) (map[string]interface{}, error) {
			assert.Equal(t, "google_scholar_author", p["engine"])
			return decode(t, body), nil
		}))
		require.NoError(t, err)
		got, err := c.AuthorAffiliation(context.Background(), "AID")
		require.NoError(t, err)
		assert.Equal(t, want, got, body)
	}
}

func TestNumCapped(t *testing.T) {
	cfg := testConfig()
	cfg.Num = 500
	assert.Equal(t, MaxNum, cfg.num())
}

func TestHTTPSearchAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("api_key"))
		assert.Equal(t, "json", q.Get("output"))
		w.Header().Set("Content-Type", "application/json")
		switch q.Get("engine") {
		case "google_scholar":
			if q.Get("start") == "100" {
				_, _ = w.Write([]byte(page1))
				return
			}
			_, _ = w.Write([]byte(page0))
		case "google_scholar_author":
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": "Your account has run out of searches."}`))
		}
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	entries, err := c.CitingAuthors(context.Background(), "77")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, "III", entries[2].AuthorID)

	_, err = c.AuthorAffiliation(context.Background(), "AID")
	require.Error(t, err)
	assert.True(t, platform.IsBlocked(err))
	assert.ErrorContains(t, err, "run out of searches")
}

func TestHTTPSearchNoResultsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "Google hasn't returned any results for this query."}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	entries, err := c.CitingAuthors(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
