package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevelsAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "INFO")

	Debug("hidden %d", 1)
	Info("visible %d", 2)
	WithPrefix("geocode").Warn("cache miss: %s", "MIT")

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "visible 2")
	assert.Contains(t, out, "[geocode] cache miss: MIT")

	SetLevel("debug")
	Debug("now shown")
	assert.Contains(t, buf.String(), "now shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, WARN, parseLevel("warning"))
	assert.Equal(t, ERROR, parseLevel("ERROR"))
	assert.Equal(t, INFO, parseLevel("nonsense"))
}
