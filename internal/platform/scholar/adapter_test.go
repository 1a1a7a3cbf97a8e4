package scholar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CitationMap/internal/platform"
)

func testConfig(baseURL string) *Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.FirstDelayMin, cfg.FirstDelayMax = 0, 0
	cfg.PageDelayMin, cfg.PageDelayMax = 0, 0
	cfg.RetryBase = time.Millisecond
	cfg.Timeout = 5 * time.Second
	return cfg
}

func newTestAdapter(t *testing.T, h http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	a, err := NewAdapter(testConfig(srv.URL))
	require.NoError(t, err)
	return a
}

const citePage2 = `<html><body>
<div class="gs_ri">
  <h3 class="gs_rt"><a href="#">Second Page Paper</a></h3>
  <div class="gs_a"><a href="/citations?user=CCC333&amp;hl=en">E Lee</a> - Science, 2023</div>
</div>
<a class="gs_nma" href="/scholar?start=0&amp;hl=en&amp;cites=123">1</a>
</body></html>`

func TestCitingAuthorsFollowsPagination(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scholar", r.URL.Path)
		if r.URL.Query().Get("start") == "10" {
			_, _ = w.Write([]byte(citePage2))
			return
		}
		// 第 3 页的链接不应被跟随
		_, _ = w.Write([]byte(strings.Replace(citePage1, "start=20", "start=999", 1)))
	}))

	entries, err := a.CitingAuthors(context.Background(), "123")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "CCC333", entries[3].AuthorID)
}

func TestCitingAuthorsBlockedKeepsEarlierPages(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "10" {
			_, _ = w.Write([]byte(`<html><body>Please show you're not a robot</body></html>`))
			return
		}
		_, _ = w.Write([]byte(citePage1))
	}))

	entries, err := a.CitingAuthors(context.Background(), "123")
	require.Error(t, err)
	assert.True(t, platform.IsBlocked(err))
	assert.Len(t, entries, 3)
}

func TestRequestStatusClassification(t *testing.T) {
	var hits atomic.Int32
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := a.CitingAuthors(context.Background(), "123")
	assert.True(t, platform.IsBlocked(err))
	// 429 不重试
	assert.Equal(t, int32(1), hits.Load())
}

func TestRequestRetriesTransientThenBlocks(t *testing.T) {
	var hits atomic.Int32
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := a.OrganizationName(context.Background(), "42")
	require.Error(t, err)
	assert.True(t, platform.IsBlocked(err))
	assert.Equal(t, int32(a.config.MaxRetries+1), hits.Load())
}

func TestPublicationsUnavailable(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := a.Publications(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, platform.IsUnavailable(err))
}

func TestPublicationsAndAuthor(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/citations", r.URL.Path)
		assert.Equal(t, "JANE", r.URL.Query().Get("user"))
		_, _ = w.Write([]byte(profilePage))
	}))

	pubs, err := a.Publications(context.Background(), "JANE")
	require.NoError(t, err)
	assert.Len(t, pubs, 2)

	prof, err := a.Author(context.Background(), "JANE")
	require.NoError(t, err)
	assert.Equal(t, "Jane Researcher", prof.Name)
	assert.Equal(t, "1234567890", prof.OrganizationID)
}

func TestEveryRequestWaitsFirst(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("view_op") == "view_org" {
			_, _ = w.Write([]byte(`<h2 class="gsc_authors_header">Stanford University</h2>`))
			return
		}
		_, _ = w.Write([]byte(profilePage))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.FirstDelayMin, cfg.FirstDelayMax = 0.03, 0.03
	a, err := NewAdapter(cfg)
	require.NoError(t, err)
	const delay = 30 * time.Millisecond

	start := time.Now()
	_, err = a.Publications(context.Background(), "JANE")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), delay)

	start = time.Now()
	name, err := a.OrganizationName(context.Background(), "1234567890")
	require.NoError(t, err)
	assert.Equal(t, "Stanford University", name)
	assert.GreaterOrEqual(t, time.Since(start), delay)

	// 取消后不再发出请求
	before := hits.Load()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.OrganizationName(ctx, "1234567890")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = a.Publications(ctx, "JANE")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, hits.Load())
}
