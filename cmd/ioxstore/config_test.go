package main

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ioxstore.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte(text), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
location = "s3://localhost:9000/iox/objects"
server_id = 42
database = "clouds"
log_level = "debug"
max_concurrent_puts = 3
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Location:          "s3://localhost:9000/iox/objects",
		ServerID:          42,
		Database:          "clouds",
		LogLevel:          "debug",
		Port:              "8080",
		MaxConcurrentPuts: 3,
	}, cfg)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(writeConfig(t, `locaton = "memory"`))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, `server_id = "one"`))
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		l, err := newLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, l)
	}
	_, err := newLogger("chatty")
	assert.Error(t, err)
}
