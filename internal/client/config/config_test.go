package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerBaseURL)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, "tablescout-session.db", c.SessionDBPath)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"server_base_url": "http://json:9000",
		"request_timeout": "30s",
		"session_db_path": "/tmp/s.db",
	})

	tests := []struct {
		name string
		args []string
		want Config
	}{
		{
			name: "defaults only",
			args: nil,
			want: Config{ServerBaseURL: "http://127.0.0.1:8080", RequestTimeout: 10 * time.Second, SessionDBPath: "tablescout-session.db"},
		},
		{
			name: "json overlays defaults",
			args: []string{"-c", path},
			want: Config{ServerBaseURL: "http://json:9000", RequestTimeout: 30 * time.Second, SessionDBPath: "/tmp/s.db"},
		},
		{
			name: "flags beat json",
			args: []string{"-config", path, "-a", "http://flag:1", "-t", "5", "-f", "x.db"},
			want: Config{ServerBaseURL: "http://flag:1", RequestTimeout: 5 * time.Second, SessionDBPath: "x.db"},
		},
		{
			name: "unrelated args are ignored",
			args: []string{"login", "-x", "-a=http://eq:2", "me@example.com"},
			want: Config{ServerBaseURL: "http://eq:2", RequestTimeout: 10 * time.Second, SessionDBPath: "tablescout-session.db"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := load(tt.args)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, *got); diff != "" {
				t.Fatalf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))

	_, err := load([]string{"-c", bad})
	assert.Error(t, err)

	_, err = load([]string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)

	_, err = load([]string{"-t", "soon"})
	assert.Error(t, err)
}
