package geocode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CitationMap/internal/batch"
	"CitationMap/internal/models"
)

type fakeProvider struct {
	name    string
	mu      sync.Mutex
	calls   map[string]int
	results map[string]models.GeocodeResult
	err     error
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, calls: map[string]int{}, results: map[string]models.GeocodeResult{}}
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Geocode(_ context.Context, aff string) (models.GeocodeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[aff]++
	if p.err != nil {
		return models.GeocodeResult{}, p.err
	}
	r, ok := p.results[aff]
	if !ok {
		return models.GeocodeResult{}, ErrNotFound
	}
	r.Affiliation = aff
	return r, nil
}

func (p *fakeProvider) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func located(lat, lng float64, city, country string) models.GeocodeResult {
	return models.GeocodeResult{Latitude: models.NewCoordinate(lat), Longitude: models.NewCoordinate(lng), City: city, Country: country}
}

func TestLookupIdempotentWithWarmCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	cache, err := OpenFileCache(path)
	require.NoError(t, err)
	primary := newFakeProvider("primary")
	primary.results["MIT"] = located(42.36, -71.09, "Cambridge", "United States")

	g := New(cache, primary, nil, Options{})
	first, cached, err := g.Lookup(context.Background(), "MIT")
	require.NoError(t, err)
	assert.False(t, cached)
	require.NoError(t, cache.Flush())
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	second, cached, err := g.Lookup(context.Background(), "MIT")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, primary.total())

	require.NoError(t, cache.Flush())
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPrimaryExhaustedThenFallbackOnce(t *testing.T) {
	cache, err := OpenFileCache(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	primary := newFakeProvider("primary")
	fallback := newFakeProvider("fallback")
	fallback.results["ETH Zurich"] = located(47.37, 8.54, "Zurich", "Switzerland")

	g := New(cache, primary, fallback, Options{MaxAttempts: 3})
	res, _, err := g.Lookup(context.Background(), "ETH Zurich")
	require.NoError(t, err)
	assert.Equal(t, "Zurich", res.City)
	assert.Equal(t, 3, primary.calls["ETH Zurich"])
	assert.Equal(t, 1, fallback.calls["ETH Zurich"])
}

func TestExhaustedResultIsCachedEmpty(t *testing.T) {
	cache, err := OpenFileCache(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	primary := newFakeProvider("primary")
	primary.err = errors.New("timeout")
	fallback := newFakeProvider("fallback")

	g := New(cache, primary, fallback, Options{MaxAttempts: 2})
	res, _, err := g.Lookup(context.Background(), "Atlantis Institute")
	assert.ErrorIs(t, err, ErrProviderExhausted)
	assert.False(t, res.Located())

	_, cached, err := g.Lookup(context.Background(), "Atlantis Institute")
	assert.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 2, primary.total())
	assert.Equal(t, 1, fallback.total())
}

func TestCanceledLookupNotCached(t *testing.T) {
	cache, err := OpenFileCache(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	primary := newFakeProvider("primary")
	primary.err = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := New(cache, primary, nil, Options{})
	_, _, err = g.Lookup(ctx, "MIT")
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := cache.Get("MIT")
	assert.False(t, ok)
}

func TestGeocodeDedupAndSentinel(t *testing.T) {
	cache, err := OpenFileCache(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	require.NoError(t, cache.Put("Stanford University", located(37.43, -122.17, "Stanford", "United States")))
	primary := newFakeProvider("primary")
	primary.results["MIT"] = located(42.36, -71.09, "Cambridge", "United States")

	g := New(cache, primary, nil, Options{Batch: batch.Options{Workers: 4}})
	records := []models.AffiliationRecord{
		{AuthorID: "a", AuthorName: "A", Affiliation: "MIT"},
		{AuthorID: "b", AuthorName: "B", Affiliation: "Stanford University"},
		{AuthorID: "c", AuthorName: "C", Affiliation: "MIT"},
		{AuthorID: models.NoAuthorFound, AuthorName: "D", Affiliation: ""},
	}
	rows, summary := g.Geocode(context.Background(), records)

	require.Len(t, rows, 4)
	assert.Equal(t, 1, primary.total())
	assert.Equal(t, batch.Summary{Stage: "geocode", Total: 2, Resolved: 2}, summary)
	assert.Equal(t, rows[0].Latitude, rows[2].Latitude)
	assert.Equal(t, rows[0].City, rows[2].City)
	assert.Equal(t, "Stanford", rows[1].City)
	assert.False(t, rows[3].HasLocation())
	assert.Empty(t, rows[3].Country)
	assert.Empty(t, rows[3].ProfileLink)
	assert.Equal(t, "https://scholar.google.com/citations?user=a&hl=en", rows[0].ProfileLink)
}

func TestFlushEvery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	cache, err := OpenFileCache(path)
	require.NoError(t, err)
	primary := newFakeProvider("primary")
	primary.results["MIT"] = located(1, 2, "", "")

	g := New(cache, primary, nil, Options{FlushEvery: 1})
	_, _, err = g.Lookup(context.Background(), "MIT")
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
