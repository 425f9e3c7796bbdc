package cluster

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// KVBucketConfig configures NATS JetStream KV bucket names.
type KVBucketConfig struct {
	// StableIDBucket is the bucket name for stable member ID claims.
	StableIDBucket string `yaml:"stableIdBucket"`

	// ElectionBucket holds one leader lease key per namespace. Its TTL is LeaseTTL.
	ElectionBucket string `yaml:"electionBucket"`

	// MembershipBucket holds one heartbeat key per namespace member. Its TTL is HeartbeatTTL.
	MembershipBucket string `yaml:"membershipBucket"`
}

// ZooKeeperConfig configures the ZooKeeper backend.
type ZooKeeperConfig struct {
	// Servers lists the ensemble addresses, e.g. ["zk1:2181", "zk2:2181"].
	Servers []string `yaml:"servers"`

	// RootPath is the parent znode of every namespace.
	RootPath string `yaml:"rootPath"`

	// SessionTimeout is the ZooKeeper session timeout. Ephemeral nodes of a
	// crashed member disappear after it expires.
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
}

// ============================================================================
// Timing Configuration Model
// ============================================================================
//
// ┌─────────────────────────────────────────────────────────────────────────┐
// │ Membership: how fast members notice each other                         │
// ├─────────────────────────────────────────────────────────────────────────┤
// │ • HeartbeatInterval: 2s - each view refreshes its membership key       │
// │ • HeartbeatTTL: 6s - a silent member disappears after this long        │
// │ • Polling: HeartbeatTTL/2 (calculated) - catches TTL expiry, which     │
// │   produces no watch event                                              │
// └─────────────────────────────────────────────────────────────────────────┘
//
// ┌─────────────────────────────────────────────────────────────────────────┐
// │ Leadership: how long a crashed leader blocks a namespace               │
// ├─────────────────────────────────────────────────────────────────────────┤
// │ • LeaseTTL: 6s - leader lease, renewed every LeaseTTL/3                │
// │ • A disabled or stopping leader deletes its lease immediately          │
// └─────────────────────────────────────────────────────────────────────────┘
//
// ┌─────────────────────────────────────────────────────────────────────────┐
// │ Rebalancing: how often ownership is reconciled                         │
// ├─────────────────────────────────────────────────────────────────────────┤
// │ • RebalancePeriod: 5s - delay between the end of one pass and the      │
// │   start of the next                                                    │
// └─────────────────────────────────────────────────────────────────────────┘
//
// Configuration Constraints:
//   - HeartbeatTTL >= 2 * HeartbeatInterval
//   - LeaseTTL >= HeartbeatInterval
//   - MemberIDTTL >= HeartbeatTTL (when the member ID is claimed)
//   - RebalancePeriod >= HeartbeatTTL (recommended)
//
// ============================================================================

// Config is the configuration for cluster services.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// MemberID is the local member identity. When empty, the NATS backend claims
	// a stable ID "<MemberIDPrefix>-<n>" from [MemberIDMin, MemberIDMax].
	MemberID string `yaml:"memberId"`

	// MemberIDPrefix is the prefix for claimed member IDs.
	MemberIDPrefix string `yaml:"memberIdPrefix"`

	// MemberIDMin is the minimum stable ID number (inclusive).
	MemberIDMin int `yaml:"memberIdMin"`

	// MemberIDMax is the maximum stable ID number (inclusive).
	// Determines the maximum number of concurrent members: (MemberIDMax - MemberIDMin + 1).
	MemberIDMax int `yaml:"memberIdMax"`

	// MemberIDTTL is how long a member ID claim remains valid without renewal.
	MemberIDTTL time.Duration `yaml:"memberIdTtl"`

	// Order is the selection priority of the service (lower wins, see selector.ByOrder).
	Order int `yaml:"order"`

	// Attributes is arbitrary metadata matched by selector.ByAttribute.
	Attributes map[string]any `yaml:"attributes"`

	// HeartbeatInterval is how often a view refreshes its membership key.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`

	// HeartbeatTTL is how long a membership key lives without refresh.
	// Must be at least 2x HeartbeatInterval.
	HeartbeatTTL time.Duration `yaml:"heartbeatTtl"`

	// LeaseTTL is the lifetime of a leader lease. The leader renews it every LeaseTTL/3.
	LeaseTTL time.Duration `yaml:"leaseTtl"`

	// OperationTimeout bounds individual backend operations (KV and ZooKeeper calls).
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// RebalancePeriod is the delay between rebalancing passes.
	RebalancePeriod time.Duration `yaml:"rebalancePeriod"`

	// KVBuckets controls NATS JetStream KV bucket configuration.
	KVBuckets KVBucketConfig `yaml:"kvBuckets"`

	// ZooKeeper controls the ZooKeeper backend.
	ZooKeeper ZooKeeperConfig `yaml:"zookeeper"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		MemberIDPrefix:    "member",
		MemberIDMin:       0,
		MemberIDMax:       99,
		MemberIDTTL:       30 * time.Second,
		HeartbeatInterval: 2 * time.Second,
		HeartbeatTTL:      6 * time.Second,
		LeaseTTL:          6 * time.Second,
		OperationTimeout:  10 * time.Second,
		RebalancePeriod:   5 * time.Second,
		KVBuckets: KVBucketConfig{
			StableIDBucket:   "cluster-stableid",
			ElectionBucket:   "cluster-election",
			MembershipBucket: "cluster-membership",
		},
		ZooKeeper: ZooKeeperConfig{
			RootPath:       "/cluster",
			SessionTimeout: 10 * time.Second,
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.MemberIDPrefix == "" {
		cfg.MemberIDPrefix = defaults.MemberIDPrefix
	}
	if cfg.MemberIDMax == 0 {
		cfg.MemberIDMax = defaults.MemberIDMax
	}
	if cfg.MemberIDTTL == 0 {
		cfg.MemberIDTTL = defaults.MemberIDTTL
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.HeartbeatTTL == 0 {
		cfg.HeartbeatTTL = 3 * cfg.HeartbeatInterval
	}
	if cfg.LeaseTTL == 0 {
		cfg.LeaseTTL = cfg.HeartbeatTTL
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.RebalancePeriod == 0 {
		cfg.RebalancePeriod = defaults.RebalancePeriod
	}
	if cfg.KVBuckets.StableIDBucket == "" {
		cfg.KVBuckets.StableIDBucket = defaults.KVBuckets.StableIDBucket
	}
	if cfg.KVBuckets.ElectionBucket == "" {
		cfg.KVBuckets.ElectionBucket = defaults.KVBuckets.ElectionBucket
	}
	if cfg.KVBuckets.MembershipBucket == "" {
		cfg.KVBuckets.MembershipBucket = defaults.KVBuckets.MembershipBucket
	}
	if cfg.ZooKeeper.RootPath == "" {
		cfg.ZooKeeper.RootPath = defaults.ZooKeeper.RootPath
	}
	if cfg.ZooKeeper.SessionTimeout == 0 {
		cfg.ZooKeeper.SessionTimeout = defaults.ZooKeeper.SessionTimeout
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - HeartbeatInterval > 0, OperationTimeout > 0, RebalancePeriod > 0
//   - HeartbeatTTL >= 2 * HeartbeatInterval (allow 1 missed heartbeat)
//   - LeaseTTL >= HeartbeatInterval (lease must survive between renewals)
//   - When MemberID is empty: MemberIDMin <= MemberIDMax and MemberIDTTL >= HeartbeatTTL
//   - ZooKeeper.RootPath starts with "/" and does not end with "/"
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: HeartbeatInterval must be > 0, got %v", ErrInvalidConfig, cfg.HeartbeatInterval)
	}
	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("%w: OperationTimeout must be > 0, got %v", ErrInvalidConfig, cfg.OperationTimeout)
	}
	if cfg.RebalancePeriod <= 0 {
		return fmt.Errorf("%w: RebalancePeriod must be > 0, got %v", ErrInvalidConfig, cfg.RebalancePeriod)
	}

	if cfg.HeartbeatTTL < 2*cfg.HeartbeatInterval {
		return fmt.Errorf(
			"%w: HeartbeatTTL (%v) must be >= 2*HeartbeatInterval (%v) to allow one missed heartbeat",
			ErrInvalidConfig, cfg.HeartbeatTTL, cfg.HeartbeatInterval,
		)
	}

	if cfg.LeaseTTL < cfg.HeartbeatInterval {
		return fmt.Errorf(
			"%w: LeaseTTL (%v) must be >= HeartbeatInterval (%v)",
			ErrInvalidConfig, cfg.LeaseTTL, cfg.HeartbeatInterval,
		)
	}

	if cfg.MemberID == "" {
		if cfg.MemberIDMin < 0 || cfg.MemberIDMax < cfg.MemberIDMin {
			return fmt.Errorf(
				"%w: member ID range [%d, %d] is empty",
				ErrInvalidConfig, cfg.MemberIDMin, cfg.MemberIDMax,
			)
		}
		if cfg.MemberIDTTL < cfg.HeartbeatTTL {
			return fmt.Errorf(
				"%w: MemberIDTTL (%v) must be >= HeartbeatTTL (%v) to prevent ID expiry before membership",
				ErrInvalidConfig, cfg.MemberIDTTL, cfg.HeartbeatTTL,
			)
		}
	}

	if cfg.ZooKeeper.SessionTimeout < 0 {
		return fmt.Errorf("%w: ZooKeeper.SessionTimeout must not be negative", ErrInvalidConfig)
	}
	if root := cfg.ZooKeeper.RootPath; root != "" {
		if root[0] != '/' || (len(root) > 1 && root[len(root)-1] == '/') {
			return fmt.Errorf("%w: ZooKeeper.RootPath %q must be absolute without trailing slash", ErrInvalidConfig, root)
		}
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.RebalancePeriod < cfg.HeartbeatTTL {
		logger.Warn(
			"RebalancePeriod is shorter than HeartbeatTTL, passes may act on stale membership",
			"rebalancePeriod", cfg.RebalancePeriod,
			"heartbeatTTL", cfg.HeartbeatTTL,
		)
	}

	if cfg.MemberID == "" && cfg.MemberIDTTL < 2*cfg.HeartbeatTTL {
		logger.Warn(
			"MemberIDTTL is below recommended minimum",
			"memberIDTTL", cfg.MemberIDTTL,
			"heartbeatTTL", cfg.HeartbeatTTL,
			"recommended", 2*cfg.HeartbeatTTL,
		)
	}

	if cfg.LeaseTTL < 2*cfg.HeartbeatInterval {
		logger.Warn(
			"LeaseTTL is short, a slow renewal may lose leadership",
			"leaseTTL", cfg.LeaseTTL,
			"recommended", 3*cfg.HeartbeatInterval,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := cluster.TestConfig()
//	cfg.MemberID = "member-a"
//	svc, err := cluster.NewNATSService(&cfg, nc)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.MemberIDTTL = 5 * time.Second
	cfg.HeartbeatInterval = 200 * time.Millisecond
	cfg.HeartbeatTTL = 1 * time.Second
	cfg.LeaseTTL = 1 * time.Second
	cfg.OperationTimeout = 2 * time.Second
	cfg.RebalancePeriod = 200 * time.Millisecond
	cfg.ZooKeeper.SessionTimeout = time.Second

	return cfg
}

// ParseConfig decodes a YAML document, applies defaults and validates the result.
//
// Parameters:
//   - data: YAML document using the field tags of Config
//
// Returns:
//   - *Config: Validated configuration
//   - error: Decoding or validation error
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return ParseConfig(data)
}
