package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// resetViper clears global viper state before and after a test.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

// writeConfig writes content to a config.yaml in a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// validSettings returns settings that pass validation.
func validSettings(t *testing.T) *Settings {
	t.Helper()
	resetViper(t)
	s, err := Load(writeConfig(t, "debug: false\n"))
	require.NoError(t, err)
	return s
}
