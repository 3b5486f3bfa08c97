package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/conf"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root, cleanup := RootCommand(&conf.Settings{}, "test")
	defer cleanup()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"init", "sync", "weather", "species", "station", "serve", "config"} {
		assert.Contains(t, names, want)
	}
	assert.True(t, root.SilenceUsage)
}

// execute runs one command line against a fresh command tree.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, cleanup := RootCommand(&conf.Settings{}, "test")
	defer cleanup()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("database:\n  type: sqlite\n  path: %s\nsync:\n  enabled: false\nweather:\n  enabled: false\n",
		filepath.Join(dir, "bwsync.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestStationSetAndShow(t *testing.T) {
	path := writeConfig(t)

	out, err := execute(t, "--config", path, "station", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No station coordinates stored")

	out, err = execute(t, "--config", path, "station", "set", "42.36", "-71.06")
	require.NoError(t, err)
	assert.Contains(t, out, "42.3600, -71.0600")

	out, err = execute(t, "--config", path, "station", "show")
	require.NoError(t, err)
	assert.Equal(t, "42.3600, -71.0600\n", out)
}

func TestStationSet_NegativeCoordinates(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "negative longitude", args: []string{"42.36", "-71.06"}, want: "42.3600, -71.0600\n"},
		{name: "negative latitude after separator", args: []string{"--", "-33.87", "151.21"}, want: "-33.8700, 151.2100\n"},
		{name: "both negative after separator", args: []string{"--", "-33.87", "-70.65"}, want: "-33.8700, -70.6500\n"},
		{name: "flags", args: []string{"--lat", "-33.87", "--lon", "151.21"}, want: "-33.8700, 151.2100\n"},
		{name: "flags with equals", args: []string{"--lat=-12.05", "--lon=-77.04"}, want: "-12.0500, -77.0400\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t)

			args := append([]string{"--config", path, "station", "set"}, tt.args...)
			_, err := execute(t, args...)
			require.NoError(t, err)

			out, err := execute(t, "--config", path, "station", "show")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestStationSet_ArgumentErrors(t *testing.T) {
	path := writeConfig(t)

	_, err := execute(t, "--config", path, "station", "set", "--lat", "10")
	require.Error(t, err)

	_, err = execute(t, "--config", path, "station", "set", "--lat", "10", "--lon", "20", "30", "40")
	require.Error(t, err)

	_, err = execute(t, "--config", path, "station", "set", "NaN", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude")
}

func TestStationSet_InvalidCoordinates(t *testing.T) {
	path := writeConfig(t)

	_, err := execute(t, "--config", path, "station", "set", "95", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude")
}

func TestMissingConfigFileFails(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "station", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}
