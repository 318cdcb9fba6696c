package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"cardarena/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New("arena", "info", true, &buf)
	log.Named("engine").Info("match started", "match_id", 7)
	log.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "arena.engine", line["@module"])
	assert.Equal(t, "match started", line["@message"])
	assert.Equal(t, float64(7), line["match_id"])
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New("arena", "loud", false, &buf)
	assert.True(t, log.IsInfo())
	assert.False(t, log.IsDebug())
}
