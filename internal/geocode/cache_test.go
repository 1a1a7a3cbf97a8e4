package geocode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CitationMap/internal/models"
)

func TestFileCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geocode_cache.json")
	c, err := OpenFileCache(path)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	mit := models.GeocodeResult{Latitude: models.NewCoordinate(42.36), Longitude: models.NewCoordinate(-71.09), City: "Cambridge", Country: "United States"}
	require.NoError(t, c.Put("MIT", mit))
	require.NoError(t, c.Put("Nowhere Institute", models.EmptyGeocode("Nowhere Institute")))
	require.NoError(t, c.Flush())

	c2, err := OpenFileCache(path)
	require.NoError(t, err)
	got, ok := c2.Get("MIT")
	require.True(t, ok)
	assert.Equal(t, 42.36, got.Latitude.Value)
	assert.Equal(t, "MIT", got.Affiliation)
	empty, ok := c2.Get("Nowhere Institute")
	require.True(t, ok)
	assert.False(t, empty.Located())

	stats, err := c2.Stats()
	require.NoError(t, err)
	assert.Equal(t, CacheStats{Entries: 2, Located: 1, Empty: 1}, stats)
	keys, err := c2.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"MIT", "Nowhere Institute"}, keys)
}

func TestFileCacheLegacyFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	legacy := `{"Stanford University": {"lat": 37.43, "lng": -122.17, "county": null, "city": "Stanford", "state": "California", "country": "United States"},
 "Unknown Place": {"lat": "", "lng": "", "county": "", "city": "", "state": "", "country": ""}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	c, err := OpenFileCache(path)
	require.NoError(t, err)
	s, _ := c.Get("Stanford University")
	assert.True(t, s.Located())
	assert.Equal(t, "", s.County)
	u, _ := c.Get("Unknown Place")
	assert.False(t, u.Located())
}

func TestFileCacheTrailingGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"MIT": {"lat": 1, "lng": 2}}{"half`), 0o644))

	c, err := OpenFileCache(path)
	require.NoError(t, err)
	_, ok := c.Get("MIT")
	assert.True(t, ok)

	// 重新落盘后残留内容被清掉
	require.NoError(t, c.Flush())
	c2, err := OpenFileCache(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c2.Len())
}

func TestFileCacheCorruptStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"MIT": {"lat": 1, "ln`), 0o644))

	c, err := OpenFileCache(path)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	_, err = os.Stat(path + ".corrupt")
	assert.NoError(t, err)
}

func TestFileCachePruneEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := OpenFileCache(path)
	require.NoError(t, err)
	require.NoError(t, c.Put("a", models.EmptyGeocode("a")))
	require.NoError(t, c.Put("b", models.GeocodeResult{Latitude: models.NewCoordinate(1), Longitude: models.NewCoordinate(2)}))

	n, err := c.PruneEmpty()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c2, err := OpenFileCache(path)
	require.NoError(t, err)
	keys, err := c2.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}
