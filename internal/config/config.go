package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// #region config
// Config holds service settings. Values come from an optional YAML file;
// environment variables override file values.
type Config struct {
	JournalPath string `yaml:"journal_path"`
	IndexPath   string `yaml:"index_path"`
	ListenAddr  string `yaml:"listen_addr"`
	SyncWrites  bool   `yaml:"sync_writes"`
	// TestTimeoutSeconds bounds a single test-procedure execution.
	// Zero disables the bound.
	TestTimeoutSeconds int `yaml:"test_timeout_seconds"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		JournalPath:        "nervecenter.jsonl",
		IndexPath:          "nervecenter_index.db",
		ListenAddr:         ":8470",
		SyncWrites:         true,
		TestTimeoutSeconds: 30,
	}
}

// TestTimeout returns the execution bound as a duration.
func (c Config) TestTimeout() time.Duration {
	return time.Duration(c.TestTimeoutSeconds) * time.Second
}
// #endregion config

// #region load
// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist), then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.JournalPath = envOr("NERVE_JOURNAL", cfg.JournalPath)
	cfg.IndexPath = envOr("NERVE_INDEX", cfg.IndexPath)
	cfg.ListenAddr = envOr("NERVE_ADDR", cfg.ListenAddr)
	if v := os.Getenv("NERVE_SYNC_WRITES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("NERVE_SYNC_WRITES: %w", err)
		}
		cfg.SyncWrites = b
	}
	if v := os.Getenv("NERVE_TEST_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("NERVE_TEST_TIMEOUT_SECONDS: %w", err)
		}
		cfg.TestTimeoutSeconds = n
	}
	return cfg, nil
}
// #endregion load

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
// #endregion helpers
