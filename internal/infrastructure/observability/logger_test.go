package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobalLogger(t *testing.T) {
	t.Helper()
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestInitLogger_JSON(t *testing.T) {
	restoreGlobalLogger(t)

	var out bytes.Buffer
	require.NoError(t, InitLogger(LogOptions{Service: "lookup-api", Version: "1.2.0", Level: "WARN", Out: &out}))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	log.Info().Msg("dropped")
	log.Warn().Msg("Terminology call failed, retrying")

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "lookup-api", entry["service"])
	assert.Equal(t, "1.2.0", entry["version"])
	assert.Equal(t, "warn", entry["level"])
	assert.Contains(t, entry, "caller")
}

func TestInitLogger_DefaultLevels(t *testing.T) {
	restoreGlobalLogger(t)

	var out bytes.Buffer
	require.NoError(t, InitLogger(LogOptions{Service: "lookup-api", Out: &out}))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	require.NoError(t, InitLogger(LogOptions{Service: "lookup-api", Console: true, Out: &out}))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	log.Debug().Msg("Searching concepts")
	assert.Contains(t, out.String(), "Searching concepts")
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	restoreGlobalLogger(t)

	err := InitLogger(LogOptions{Service: "lookup-api", Level: "loud", Out: &bytes.Buffer{}})
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}
