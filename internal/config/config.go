// Package config resolves kaybee's runtime configuration: where the primary
// database lives, which schema layout it uses, and the optional remote
// store used for replication. Resolution order is flag > environment >
// .env file > default, the same layered precedence the teacher's
// LoadConfig gives its encryption settings, with .env loading delegated to
// godotenv the way the teacher's test setup does (db/sqlite_integration_test.go).
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/tg1482/kaybee/internal/schema"
)

// Environment variable names, prefixed KAYBEE_ for the same reason the
// teacher prefixes its own MORFX_*: a stable, greppable namespace.
const (
	EnvDBPath       = "KAYBEE_DB_PATH"
	EnvLayout       = "KAYBEE_LAYOUT"
	EnvRemoteDSN    = "KAYBEE_REMOTE_DSN"
	EnvRemoteToken  = "KAYBEE_REMOTE_TOKEN"
	EnvChangelogOff = "KAYBEE_CHANGELOG_DISABLED"
)

const (
	DefaultDBPath = ".kaybee/graph.db"
	DefaultLayout = schema.LayoutPerType
)

// Config holds kaybee's resolved runtime settings.
type Config struct {
	DBPath            string
	Layout             string
	RemoteDSN          string
	RemoteToken        string
	ChangelogDisabled  bool
}

// Flags carries the subset of Config a CLI's persistent flags can override.
// Zero values mean "not set on the command line"; Load only applies a flag
// value when its corresponding Set* bool is true, so env and defaults still
// take effect for flags the caller left untouched.
type Flags struct {
	DBPath            string
	SetDBPath         bool
	Layout            string
	SetLayout         bool
	RemoteDSN         string
	SetRemoteDSN      bool
	RemoteToken       string
	SetRemoteToken    bool
	ChangelogDisabled bool
	SetChangelogDisabled bool
}

// Load resolves Config from, in increasing priority: built-in defaults, a
// ".env" file in the working directory (ignored if absent), process
// environment variables, then flags. godotenv.Load's error is ignored, the
// same way the teacher's entry point treats a missing .env as unremarkable.
func Load(flags Flags) *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath: DefaultDBPath,
		Layout: DefaultLayout,
	}

	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvLayout); v != "" {
		cfg.Layout = v
	}
	if v := os.Getenv(EnvRemoteDSN); v != "" {
		cfg.RemoteDSN = v
	}
	if v := os.Getenv(EnvRemoteToken); v != "" {
		cfg.RemoteToken = v
	}
	if v := os.Getenv(EnvChangelogOff); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ChangelogDisabled = b
		}
	}

	if flags.SetDBPath {
		cfg.DBPath = flags.DBPath
	}
	if flags.SetLayout {
		cfg.Layout = flags.Layout
	}
	if flags.SetRemoteDSN {
		cfg.RemoteDSN = flags.RemoteDSN
	}
	if flags.SetRemoteToken {
		cfg.RemoteToken = flags.RemoteToken
	}
	if flags.SetChangelogDisabled {
		cfg.ChangelogDisabled = flags.ChangelogDisabled
	}

	return cfg
}
