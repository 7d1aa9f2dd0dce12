package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	c, err := FromEnv(envOf(nil))
	require.NoError(t, err)
	require.Equal(t, Default(), c)
	require.Equal(t, ":3000", c.Addr())
	require.Equal(t, 2*time.Second, c.PollInterval)
	require.Equal(t, 3*time.Second, c.ConfirmDuration)
	require.Equal(t, 30*time.Minute, c.SessionIdle)
}

func TestOverrides(t *testing.T) {
	c, err := FromEnv(envOf(map[string]string{
		"PORT":             "8080",
		"DATA_DIR":         "/var/portal",
		"STORE_BACKEND":    "sqlite",
		"POLL_INTERVAL":    "500ms",
		"CONFIRM_DURATION": "1s",
		"SESSION_IDLE":     "10m",
		"ADMIN_EMAIL":      "boss@x.com",
		"ADMIN_CODE":       "1622",
		"QUOTA_BYTES":      "5242880",
		"GUEST_DOMAIN":     "example.org",
	}))
	require.NoError(t, err)
	require.Equal(t, "sqlite", c.Backend)
	require.Equal(t, 500*time.Millisecond, c.PollInterval)
	require.Equal(t, 10*time.Minute, c.SessionIdle)
	require.Equal(t, int64(5242880), c.QuotaBytes)
	require.Equal(t, "1622", c.AdminCode)
	require.Equal(t, "example.org", c.GuestDomain)
}

func TestInvalidValues(t *testing.T) {
	tests := map[string]map[string]string{
		"bad duration":      {"POLL_INTERVAL": "soon"},
		"negative duration": {"CONFIRM_DURATION": "-1s"},
		"bad quota":         {"QUOTA_BYTES": "lots"},
		"bad backend":       {"STORE_BACKEND": "redis"},
		"bad port":          {"PORT": "http"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envOf(env))
			require.Error(t, err)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GUEST_DOMAIN=from-file.test\n"), 0o644))
	t.Setenv("GUEST_DOMAIN", "")
	os.Unsetenv("GUEST_DOMAIN")

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-file.test", c.GuestDomain)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}
