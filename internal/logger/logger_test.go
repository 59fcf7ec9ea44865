package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestNewWritesJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New(Options{Level: "info", Output: &buf}), "postmaster")
	l.Debug().Msg("hidden")
	l.Info().Str("ticket_number", "TIPA-HD-250101-001").Msg("created")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "postmaster", entry["component"])
	assert.Equal(t, "created", entry["message"])
	assert.Equal(t, "TIPA-HD-250101-001", entry["ticket_number"])
	assert.Contains(t, entry, "time")
}
