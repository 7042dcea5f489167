package pkg

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	settings, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, "info", settings.Log.Level)
	assert.False(t, settings.Log.JSON)
	assert.Equal(t, ".tools", settings.ToolsDir)
	assert.Equal(t, "DEPS.yml", settings.Deps.Manifest)
	assert.Equal(t, "DEPS.stamps", settings.Deps.Stamps)
	assert.Equal(t, zerolog.InfoLevel, settings.LogLevel())
}

func TestLoadSettingsEnvOverride(t *testing.T) {
	require.NoError(t, os.Setenv("DAEDALUS_LOG_LEVEL", "debug"))
	defer os.Unsetenv("DAEDALUS_LOG_LEVEL")

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "debug", settings.Log.Level)
	assert.Equal(t, zerolog.DebugLevel, settings.LogLevel())
}

func TestLoadSettingsRejectsUnknownLevel(t *testing.T) {
	require.NoError(t, os.Setenv("DAEDALUS_LOG_LEVEL", "loud"))
	defer os.Unsetenv("DAEDALUS_LOG_LEVEL")

	_, err := LoadSettings()
	require.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	settings := Settings{}
	settings.Log.Level = "warning"
	assert.NoError(t, settings.Validate())

	settings.Log.Level = "verbose"
	assert.Error(t, settings.Validate())
}
