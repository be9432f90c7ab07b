package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
shc:
  host: 192.168.1.20
  user: owner
  password: secret
bridge:
  pathscheme: name
`)
	v := viper.New()
	require.NoError(t, readConfig(v, path))
	c, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.20", c.Shc.Host)
	assert.Equal(t, "owner", c.Shc.User)
	assert.Equal(t, 30, c.Shc.PollTimeout)
	assert.Equal(t, "tcp://localhost:1883", c.Mqtt.Broker)
	assert.Equal(t, "smarthome/0", c.Mqtt.Prefix)
	assert.Equal(t, "9123", c.Metrics.Port)
	assert.Equal(t, "name", c.Bridge.PathScheme)
	assert.Equal(t, "", c.Influxdb.Host)
}

func TestLoadConfigMissingLogin(t *testing.T) {
	path := writeConfig(t, `
shc:
  host: 192.168.1.20
  user: owner
`)
	v := viper.New()
	require.NoError(t, readConfig(v, path))
	_, err := loadConfig(v)
	assert.ErrorIs(t, err, ErrMissingLogin)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("SHC_SHC_PASSWORD", "from-env")
	path := writeConfig(t, `
shc:
  host: 192.168.1.20
  user: owner
  password: from-file
`)
	v := viper.New()
	require.NoError(t, readConfig(v, path))
	c, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Shc.Password)
}

func TestMissingFileKeepsDefaults(t *testing.T) {
	v := viper.New()
	assert.Error(t, readConfig(v, filepath.Join(t.TempDir(), "absent.yaml")))
	_, err := loadConfig(v)
	assert.ErrorIs(t, err, ErrMissingLogin)
}
