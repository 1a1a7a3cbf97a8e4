package geocode

import (
	"context"
	"fmt"

	geo "github.com/codingsince1985/geo-golang"
	"github.com/codingsince1985/geo-golang/openstreetmap"
	"golang.org/x/time/rate"

	"CitationMap/internal/models"
	"CitationMap/internal/throttle"
)

// Nominatim OpenStreetMap 的免费地理编码，先正向查询坐标再反查行政区划
type Nominatim struct {
	geocoder geo.Geocoder
	limiter  *rate.Limiter
}

// NewNominatim baseURL 为空时使用公共服务。公共服务要求每秒不超过一次请求
func NewNominatim(baseURL string, perSecond float64) *Nominatim {
	var g geo.Geocoder
	if baseURL == "" {
		g = openstreetmap.Geocoder()
	} else {
		g = openstreetmap.GeocoderWithURL(baseURL)
	}
	return NewNominatimWith(g, perSecond)
}

// NewNominatimWith 使用给定的 geo.Geocoder
func NewNominatimWith(g geo.Geocoder, perSecond float64) *Nominatim {
	return &Nominatim{geocoder: g, limiter: throttle.NewLimiter(perSecond)}
}

func (n *Nominatim) Name() string { return "nominatim" }

func (n *Nominatim) Geocode(ctx context.Context, affiliation string) (models.GeocodeResult, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return models.GeocodeResult{}, err
	}
	loc, err := call(ctx, func() (*geo.Location, error) { return n.geocoder.Geocode(affiliation) })
	if err != nil {
		return models.GeocodeResult{}, fmt.Errorf("nominatim: %w", err)
	}
	if loc == nil {
		return models.GeocodeResult{}, ErrNotFound
	}

	res := models.GeocodeResult{
		Affiliation: affiliation,
		Latitude:    models.NewCoordinate(loc.Lat),
		Longitude:   models.NewCoordinate(loc.Lng),
	}

	// 反查失败时仍保留坐标
	if err := n.limiter.Wait(ctx); err != nil {
		return res, nil
	}
	addr, err := call(ctx, func() (*geo.Address, error) { return n.geocoder.ReverseGeocode(loc.Lat, loc.Lng) })
	if err == nil && addr != nil {
		res.County = addr.County
		res.City = addr.City
		res.State = addr.State
		res.Country = addr.Country
	}
	return res, nil
}

// call 在 goroutine 中执行不支持 ctx 的调用
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
