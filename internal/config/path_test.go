package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("ONETHING_TEST_DIR", "/srv/focus")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "tilde", in: "~", want: home},
		{name: "tilde prefix", in: "~/data/db.sqlite", want: filepath.Join(home, "data", "db.sqlite")},
		{name: "env var", in: "$ONETHING_TEST_DIR/db.sqlite", want: "/srv/focus/db.sqlite"},
		{name: "braced env var", in: "${ONETHING_TEST_DIR}/x", want: "/srv/focus/x"},
		{name: "tilde not at start", in: "/tmp/~/x", want: "/tmp/~/x"},
		{name: "absolute", in: "/var/lib/onething.db", want: "/var/lib/onething.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestDefaultDatabasePath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, "/data/onething/onething.db", DefaultDatabasePath())

	t.Setenv("XDG_DATA_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "share", "onething", "onething.db"), DefaultDatabasePath())
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "onething.db")

	require.NoError(t, EnsureDir(path))
	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, EnsureDir("relative.db"))
}
