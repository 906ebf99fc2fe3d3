package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info().Msg("hidden")
	log.Warn().Str("component", "bingx").Msg("clock skew")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"component":"bingx"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "verbose", Output: &buf})

	log.Debug().Msg("debug line")
	log.Info().Msg("info line")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "info line")
}

func TestNewPrettyWritesConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Pretty: true, Output: &buf})

	log.Info().Msg("server started")

	assert.Contains(t, buf.String(), "server started")
	assert.NotContains(t, buf.String(), `"message"`)
}
