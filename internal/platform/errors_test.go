package platform

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		blocked   bool
		transient bool
	}{
		{403, true, false},
		{429, true, false},
		{502, false, true},
		{404, false, false},
	}
	for _, c := range cases {
		err := fmt.Errorf("fetch: %w", &HTTPError{StatusCode: c.status, URL: "http://x"})
		assert.Equal(t, c.blocked, IsBlocked(err), "status %d", c.status)
		assert.Equal(t, c.transient, IsTransient(err), "status %d", c.status)
	}
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(fmt.Errorf("author x: %w", ErrUpstreamUnavailable)))
	assert.False(t, IsUnavailable(ErrBlocked))
}
