package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CitationMap/internal/platform"
)

type stubConfig struct{ name string }

func (c *stubConfig) Validate() error {
	if c.name == "" {
		return errors.New("name is required")
	}
	return nil
}

type stubPlatform struct{ cfg *stubConfig }

func (p *stubPlatform) Name() string { return p.cfg.name }
func (p *stubPlatform) GetConfig() platform.Config { return p.cfg }

func registerStub(t *testing.T, name string) {
	t.Helper()
	err := Register(Provider{
		Name: name,
		New: func(cfg platform.Config) (platform.Platform, error) {
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return &stubPlatform{cfg: cfg.(*stubConfig)}, nil
		},
		DefaultConfig: func() platform.Config { return &stubConfig{name: name} },
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		regMu.Lock()
		delete(registry, name)
		regMu.Unlock()
	})
}

func TestRegistryNewPlatform(t *testing.T) {
	registerStub(t, "stub")

	assert.Contains(t, List(), "stub")
	assert.Error(t, Register(Provider{Name: "stub"}))

	plat, err := newPlatform("stub", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", plat.Name())

	_, err = newPlatform("stub", &stubConfig{})
	assert.ErrorContains(t, err, "name is required")

	_, err = newPlatform("missing", nil)
	assert.Error(t, err)
}
