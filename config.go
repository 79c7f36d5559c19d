package decryptiondb

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds every knob a Service needs to start. Recognized options are
// documented per field; db_path is the only one without a usable default.
type Config struct {
	// DBPath is the filesystem directory for the durable store. Required.
	DBPath string `toml:"db_path"`

	// ListenAddr is the address the HTTP server binds.
	ListenAddr string `toml:"listen_addr"`

	// Record names the path prefix routes are mounted under, e.g.
	// "decryption" gives PUT/GET /decryption/{key}.
	Record string `toml:"record"`

	// Profile selects the payload/signature shape: "uint64-hex" or
	// "bool-base64". See codec.Uint64Profile / codec.BoolProfile.
	Profile string `toml:"profile"`

	// MaxExpectedOracleDelayMS is both the per-GET wait-cache timeout and
	// the wait-cache TTL; the two share this one knob.
	MaxExpectedOracleDelayMS uint64 `toml:"max_expected_oracle_delay_ms"`

	// WorkerPoolSize bounds concurrent blocking store calls.
	WorkerPoolSize int `toml:"worker_pool_size"`

	// Deprecated client-side polling knobs, accepted and logged-as-ignored
	// rather than rejected, so an old config file doesn't hard-fail a
	// rolling upgrade.
	GetSleepPeriodMS uint64 `toml:"get_sleep_period_ms"`
	GetRetryCount    uint64 `toml:"get_retry_count"`

	Log LogConfig `toml:"log"`
}

// DefaultConfig returns a Config with every optional field set to its
// documented default; DBPath is still empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		ListenAddr:               ":8080",
		Record:                   "decryption",
		Profile:                  "uint64-hex",
		MaxExpectedOracleDelayMS: 30_000,
		WorkerPoolSize:           16,
	}
}

// MaxExpectedOracleDelay is MaxExpectedOracleDelayMS as a time.Duration.
func (c Config) MaxExpectedOracleDelay() time.Duration {
	return time.Duration(c.MaxExpectedOracleDelayMS) * time.Millisecond
}

// LoadConfig reads a TOML config file at path, overlays environment
// variable overrides, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decryptiondb: loading config %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

// applyEnvOverrides lets DECRYPTIONDB_* environment variables override the
// file, mirroring caddy's CADDY_ADMIN convention (admin.go's init).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DECRYPTIONDB_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DECRYPTIONDB_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DECRYPTIONDB_RECORD"); v != "" {
		cfg.Record = v
	}
	if v := os.Getenv("DECRYPTIONDB_PROFILE"); v != "" {
		cfg.Profile = v
	}
}

// Validate rejects a Config that cannot be used to build a Service.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("decryptiondb: db_path is required")
	}
	if c.Record == "" {
		return fmt.Errorf("decryptiondb: record is required")
	}
	switch c.Profile {
	case "uint64-hex", "bool-base64":
	default:
		return fmt.Errorf("decryptiondb: unknown profile %q", c.Profile)
	}
	if c.MaxExpectedOracleDelayMS == 0 {
		return fmt.Errorf("decryptiondb: max_expected_oracle_delay_ms must be > 0")
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("decryptiondb: worker_pool_size must be > 0")
	}
	return nil
}
