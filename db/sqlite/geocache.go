package db

import (
	"database/sql"
	"errors"

	"CitationMap/internal/geocode"
	"CitationMap/internal/models"
	"CitationMap/pkg/logger"
)

// GeocodeCache 基于 sqlite 的地理编码缓存，每次 Put 即落盘
type GeocodeCache struct {
	db *SQLiteDB
}

func (d *SQLiteDB) GeocodeCache() *GeocodeCache {
	return &GeocodeCache{db: d}
}

func (c *GeocodeCache) Get(affiliation string) (models.GeocodeResult, bool) {
	var lat, lng sql.NullFloat64
	var county, city, state, country sql.NullString
	err := c.db.db.QueryRow(`SELECT lat, lng, county, city, state, country FROM geocode_cache WHERE affiliation = ?`, affiliation).
		Scan(&lat, &lng, &county, &city, &state, &country)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn("读取地理编码缓存 %q 失败，按未命中处理: %v", affiliation, err)
		}
		return models.GeocodeResult{}, false
	}
	res := models.GeocodeResult{
		Affiliation: affiliation,
		County:      county.String,
		City:        city.String,
		State:       state.String,
		Country:     country.String,
	}
	if lat.Valid && lng.Valid {
		res.Latitude = models.NewCoordinate(lat.Float64)
		res.Longitude = models.NewCoordinate(lng.Float64)
	}
	return res, true
}

// Put 已有坐标的条目不会被空结果覆盖
func (c *GeocodeCache) Put(affiliation string, res models.GeocodeResult) error {
	_, err := c.db.db.Exec(`
	INSERT INTO geocode_cache (affiliation, lat, lng, county, city, state, country, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(affiliation) DO UPDATE SET
		lat = excluded.lat, lng = excluded.lng, county = excluded.county, city = excluded.city,
		state = excluded.state, country = excluded.country, updated_at = CURRENT_TIMESTAMP
	WHERE excluded.lat IS NOT NULL OR geocode_cache.lat IS NULL`,
		affiliation, nullCoord(res.Latitude), nullCoord(res.Longitude), res.County, res.City, res.State, res.Country)
	return err
}

// Flush 写入已经在 Put 中完成
func (c *GeocodeCache) Flush() error { return nil }

func (c *GeocodeCache) Stats() (geocode.CacheStats, error) {
	var s geocode.CacheStats
	err := c.db.db.QueryRow(`
	SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN lat IS NOT NULL AND lng IS NOT NULL THEN 1 ELSE 0 END), 0)
	FROM geocode_cache`).Scan(&s.Entries, &s.Located)
	s.Empty = s.Entries - s.Located
	return s, err
}

func (c *GeocodeCache) PruneEmpty() (int, error) {
	res, err := c.db.db.Exec(`DELETE FROM geocode_cache WHERE lat IS NULL OR lng IS NULL`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (c *GeocodeCache) Keys() ([]string, error) {
	rows, err := c.db.db.Query(`SELECT affiliation FROM geocode_cache ORDER BY affiliation`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func nullCoord(c models.Coordinate) sql.NullFloat64 {
	return sql.NullFloat64{Float64: c.Value, Valid: c.Valid}
}

var (
	_ geocode.Cache      = (*GeocodeCache)(nil)
	_ geocode.Maintainer = (*GeocodeCache)(nil)
)
