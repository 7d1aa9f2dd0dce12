// Package config reads the portal settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DataDir         string
	Backend         string
	PollInterval    time.Duration
	ConfirmDuration time.Duration
	SessionIdle     time.Duration
	AdminEmail      string
	AdminCode       string
	QuotaBytes      int64
	GuestDomain     string
}

func Default() Config {
	return Config{
		Port:            "3000",
		DataDir:         "data",
		Backend:         "file",
		PollInterval:    2 * time.Second,
		ConfirmDuration: 3 * time.Second,
		SessionIdle:     30 * time.Minute,
		AdminEmail:      "admin@tylock.games",
		GuestDomain:     "tylock.games",
	}
}

// Load applies envFile (a missing file is fine) and then reads the
// environment. Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, falling back to Default for unset
// keys.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("DATA_DIR", &c.DataDir)
	str("STORE_BACKEND", &c.Backend)
	str("ADMIN_EMAIL", &c.AdminEmail)
	str("ADMIN_CODE", &c.AdminCode)
	str("GUEST_DOMAIN", &c.GuestDomain)

	var errs []error
	dur := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
			return
		}
		*dst = d
	}
	dur("POLL_INTERVAL", &c.PollInterval)
	dur("CONFIRM_DURATION", &c.ConfirmDuration)
	dur("SESSION_IDLE", &c.SessionIdle)

	if v := strings.TrimSpace(getenv("QUOTA_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("QUOTA_BYTES: invalid size %q", v))
		} else {
			c.QuotaBytes = n
		}
	}

	switch c.Backend {
	case "file", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND: unknown backend %q", c.Backend))
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT: invalid port %q", c.Port))
	}
	return c, errors.Join(errs...)
}

func (c Config) Addr() string { return ":" + c.Port }
