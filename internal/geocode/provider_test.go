package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	geo "github.com/codingsince1985/geo-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOSM struct {
	loc  *geo.Location
	addr *geo.Address
	err  error
}

func (f fakeOSM) Geocode(string) (*geo.Location, error) { return f.loc, f.err }

func (f fakeOSM) ReverseGeocode(float64, float64) (*geo.Address, error) { return f.addr, nil }

func TestNominatimGeocode(t *testing.T) {
	n := NewNominatimWith(fakeOSM{
		loc:  &geo.Location{Lat: 51.75, Lng: -1.25},
		addr: &geo.Address{County: "Oxfordshire", City: "Oxford", State: "England", Country: "United Kingdom"},
	}, 0)
	res, err := n.Geocode(context.Background(), "University of Oxford")
	require.NoError(t, err)
	assert.Equal(t, 51.75, res.Latitude.Value)
	assert.Equal(t, "Oxfordshire", res.County)
	assert.Equal(t, "United Kingdom", res.Country)
}

func TestNominatimNotFound(t *testing.T) {
	n := NewNominatimWith(fakeOSM{}, 0)
	_, err := n.Geocode(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, ErrNotFound)

	n = NewNominatimWith(fakeOSM{err: errors.New("boom")}, 0)
	_, err = n.Geocode(context.Background(), "Nowhere")
	assert.ErrorContains(t, err, "boom")
}

const googleOK = `{
  "status": "OK",
  "results": [{
    "geometry": {"location": {"lat": 42.3601, "lng": -71.0942}},
    "address_components": [
      {"long_name": "Cambridge", "short_name": "Cambridge", "types": ["locality", "political"]},
      {"long_name": "Middlesex County", "short_name": "Middlesex County", "types": ["administrative_area_level_2", "political"]},
      {"long_name": "Massachusetts", "short_name": "MA", "types": ["administrative_area_level_1", "political"]},
      {"long_name": "United States", "short_name": "US", "types": ["country", "political"]}
    ]
  }]
}`

func TestGoogleMapsComponents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		if r.URL.Query().Get("address") == "Nowhere" {
			_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
			return
		}
		_, _ = w.Write([]byte(googleOK))
	}))
	defer srv.Close()

	g, err := NewGoogleMaps("AIzaTestKey", srv.URL, 0, srv.Client())
	require.NoError(t, err)

	res, err := g.Geocode(context.Background(), "MIT")
	require.NoError(t, err)
	assert.Equal(t, 42.3601, res.Latitude.Value)
	assert.Equal(t, "Middlesex County", res.County)
	assert.Equal(t, "Cambridge", res.City)
	assert.Equal(t, "Massachusetts", res.State)
	assert.Equal(t, "United States", res.Country)

	_, err = g.Geocode(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}
