package geocode

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"googlemaps.github.io/maps"

	"CitationMap/internal/models"
)

// GoogleMaps 需要 API key 的地理编码服务
type GoogleMaps struct {
	client *maps.Client
}

// NewGoogleMaps baseURL 只在测试中使用，httpClient 为 nil 时使用默认客户端
func NewGoogleMaps(apiKey, baseURL string, perSecond int, httpClient *http.Client) (*GoogleMaps, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, maps.WithHTTPClient(httpClient))
	}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}
	if perSecond > 0 {
		opts = append(opts, maps.WithRateLimit(perSecond))
	}
	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("google maps: %w", err)
	}
	return &GoogleMaps{client: c}, nil
}

func (g *GoogleMaps) Name() string { return "googlemaps" }

func (g *GoogleMaps) Geocode(ctx context.Context, affiliation string) (models.GeocodeResult, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: affiliation})
	if err != nil && strings.Contains(err.Error(), "ZERO_RESULTS") {
		return models.GeocodeResult{}, ErrNotFound
	}
	if err != nil {
		return models.GeocodeResult{}, fmt.Errorf("google maps: %w", err)
	}
	if len(results) == 0 {
		return models.GeocodeResult{}, ErrNotFound
	}
	top := results[0]
	res := models.GeocodeResult{
		Affiliation: affiliation,
		Latitude:    models.NewCoordinate(top.Geometry.Location.Lat),
		Longitude:   models.NewCoordinate(top.Geometry.Location.Lng),
	}
	for _, comp := range top.AddressComponents {
		switch {
		case slices.Contains(comp.Types, "administrative_area_level_2"):
			res.County = comp.LongName
		case slices.Contains(comp.Types, "locality"):
			res.City = comp.LongName
		case slices.Contains(comp.Types, "administrative_area_level_1"):
			res.State = comp.LongName
		case slices.Contains(comp.Types, "country"):
			res.Country = comp.LongName
		}
	}
	return res, nil
}
