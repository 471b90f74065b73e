package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Default tunables.
const (
	DefaultNamespace          = "default"
	DefaultL1MaxEntries       = 100
	DefaultL2TTL              = 24 * time.Hour
	DefaultL3TTL              = 90 * 24 * time.Hour
	DefaultFileName           = "cache.json"
	DefaultRefreshConcurrency = 4
)

// Config holds the static tunables of a Layer. It is plain data: the core
// never reads files or the environment on its own, see LoadConfig/ApplyEnv.
type Config struct {
	// Namespace scopes the L2 file and the L3 calls.
	Namespace string `yaml:"namespace"`

	// L1MaxEntries bounds the in-memory tier (must be >= 1).
	L1MaxEntries int `yaml:"l1_max_entries"`
	// L1TTL is the TTL given to L1 entries; 0 inherits L2TTL.
	L1TTL time.Duration `yaml:"l1_ttl"`
	// L1Policy selects the recency policy: "lru" (default) or "2q".
	L1Policy string `yaml:"l1_policy"`

	L2TTL time.Duration `yaml:"l2_ttl"`
	// L3TTL is not read by Layer: a RemoteTier enforces its own TTL. It is
	// the value handed to the remote constructors (sqlite.Config.TTL,
	// s3.Config.TTL) so one config file drives every tier.
	L3TTL time.Duration `yaml:"l3_ttl"`

	// RefreshInterval enables a background L3->L2->L1 sync of the keys
	// resident in L1. Zero disables it.
	RefreshInterval    time.Duration `yaml:"refresh_interval"`
	RefreshConcurrency int           `yaml:"refresh_concurrency"`

	CacheDir string `yaml:"cache_dir"`
	FileName string `yaml:"file_name"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return Config{
		Namespace:          DefaultNamespace,
		L1MaxEntries:       DefaultL1MaxEntries,
		L1Policy:           "lru",
		L2TTL:              DefaultL2TTL,
		L3TTL:              DefaultL3TTL,
		RefreshConcurrency: DefaultRefreshConcurrency,
		CacheDir:           filepath.Join(dir, "tiercache"),
		FileName:           DefaultFileName,
	}
}

// LoadConfig builds a Config from defaults, then the YAML file at path
// (skipped when path is empty), then TIERCACHE_* environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overlays TIERCACHE_* environment variables. Values that fail to
// parse are ignored.
func (c *Config) ApplyEnv() {
	if val := os.Getenv("TIERCACHE_NAMESPACE"); val != "" {
		c.Namespace = val
	}
	if val := os.Getenv("TIERCACHE_L1_MAX_ENTRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.L1MaxEntries = n
		}
	}
	if val := os.Getenv("TIERCACHE_L1_POLICY"); val != "" {
		c.L1Policy = strings.ToLower(val)
	}
	envDuration("TIERCACHE_L1_TTL", &c.L1TTL)
	envDuration("TIERCACHE_L2_TTL", &c.L2TTL)
	envDuration("TIERCACHE_L3_TTL", &c.L3TTL)
	envDuration("TIERCACHE_REFRESH_INTERVAL", &c.RefreshInterval)
	if val := os.Getenv("TIERCACHE_CACHE_DIR"); val != "" {
		c.CacheDir = val
	}
	if val := os.Getenv("TIERCACHE_FILE_NAME"); val != "" {
		c.FileName = val
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

// Validate reports the first configuration problem, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.Namespace == "":
		return fmt.Errorf("%w: namespace is empty", ErrInvalidConfig)
	case strings.ContainsAny(c.Namespace, `/\`):
		return fmt.Errorf("%w: namespace %q contains a path separator", ErrInvalidConfig, c.Namespace)
	case c.L1MaxEntries < 1:
		return fmt.Errorf("%w: l1_max_entries must be >= 1, got %d", ErrInvalidConfig, c.L1MaxEntries)
	case c.L1TTL < 0:
		return fmt.Errorf("%w: l1_ttl must not be negative", ErrInvalidConfig)
	case c.L2TTL <= 0:
		return fmt.Errorf("%w: l2_ttl must be > 0", ErrInvalidConfig)
	case c.L3TTL <= 0:
		return fmt.Errorf("%w: l3_ttl must be > 0", ErrInvalidConfig)
	case c.RefreshInterval < 0:
		return fmt.Errorf("%w: refresh_interval must not be negative", ErrInvalidConfig)
	case c.CacheDir == "":
		return fmt.Errorf("%w: cache_dir is empty", ErrInvalidConfig)
	case c.FileName == "" || filepath.Base(c.FileName) != c.FileName:
		return fmt.Errorf("%w: file_name %q must be a bare file name", ErrInvalidConfig, c.FileName)
	}
	switch c.L1Policy {
	case "", "lru", "2q":
	default:
		return fmt.Errorf("%w: unknown l1_policy %q (use lru or 2q)", ErrInvalidConfig, c.L1Policy)
	}
	return nil
}

// DiskPath returns the L2 file location: <CacheDir>/<Namespace>_<FileName>.
func (c Config) DiskPath() string {
	return filepath.Join(c.CacheDir, c.Namespace+"_"+c.FileName)
}

// l1TTL resolves the effective L1 TTL.
func (c Config) l1TTL() time.Duration {
	if c.L1TTL > 0 {
		return c.L1TTL
	}
	return c.L2TTL
}
