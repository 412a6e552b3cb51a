// Package config loads and validates the YAML server configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/mitchellh/mapstructure"

	"github.com/goodaegwang/cirrus/internal/validation"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Token  TokenConfig  `yaml:"token"`
	Store  StoreConfig  `yaml:"store"`
	Audit  AuditConfig  `yaml:"audit"`
	Tasks  TasksConfig  `yaml:"tasks"`
}

type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type TokenConfig struct {
	// SignSecret signs newly issued tokens.
	SignSecret string `yaml:"sign_secret"`

	// VerifySecret verifies presented tokens. Usually equal to
	// SignSecret; set separately only during key rollover.
	VerifySecret string `yaml:"verify_secret"`
}

type StoreConfig struct {
	// Type selects the backend: "memory" or "postgres".
	Type string `yaml:"type"`

	// DSN is the PostgreSQL connection string. Ignored for memory.
	DSN string `yaml:"dsn"`

	// Pool holds driver-specific connection pool settings.
	Pool map[string]any `yaml:"pool"`

	// CacheTTL enables the read-through client cache when positive.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Seed holds development data loaded into the memory store.
	Seed SeedConfig `yaml:"seed"`
}

type SeedConfig struct {
	Clients  []validation.SeedClient `yaml:"clients"`
	Users    []SeedUser              `yaml:"users"`
	AppKeys  []SeedAppKey            `yaml:"app_keys"`
	Services []string                `yaml:"services"`
	Devices  []SeedDevice            `yaml:"devices"`
}

type SeedUser struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Scope     string `yaml:"scope"`
	Status    string `yaml:"status"`
	ServiceID string `yaml:"service_id"`
	Password  string `yaml:"password"`
}

type SeedAppKey struct {
	AppKey    string `yaml:"app_key"`
	UserID    string `yaml:"user_id"`
	ServiceID string `yaml:"service_id"`
	Password  string `yaml:"password"`
}

type SeedDevice struct {
	ServiceID string `yaml:"service_id"`
	DeviceID  string `yaml:"device_id"`
}

// PoolParams are the decoded PostgreSQL pool settings.
type PoolParams struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// PoolParams decodes the free-form pool section, filling defaults for
// anything not set.
func (c StoreConfig) PoolParams() (PoolParams, error) {
	params := PoolParams{
		MaxOpenConns:    16,
		MaxIdleConns:    4,
		ConnMaxLifetime: 30 * time.Minute,
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &params,
	})
	if err != nil {
		return params, fmt.Errorf("creating pool decoder: %w", err)
	}
	if err := decoder.Decode(c.Pool); err != nil {
		return params, fmt.Errorf("decoding store.pool: %w", err)
	}
	return params, nil
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

type TasksConfig struct {
	// TokenCleanupInterval schedules the expired-token sweep.
	// Zero disables scheduling; the task can still be triggered manually.
	TokenCleanupInterval time.Duration `yaml:"token_cleanup_interval"`
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Token.SignSecret == "" {
		return fmt.Errorf("token.sign_secret is required")
	}
	if c.Token.VerifySecret == "" {
		c.Token.VerifySecret = c.Token.SignSecret
	}

	switch c.Store.Type {
	case "", "memory":
		c.Store.Type = "memory"
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres store")
		}
		if _, err := c.Store.PoolParams(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}

	clients, err := validation.ValidateClients(c.Store.Seed.Clients)
	if err != nil {
		return fmt.Errorf("validating seed clients: %w", err)
	}
	c.Store.Seed.Clients = clients

	if err := validateSeedUsers(c.Store.Seed.Users); err != nil {
		return fmt.Errorf("validating seed users: %w", err)
	}

	if c.Audit.Enabled && c.Audit.Type == "file" && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required for the file auditor")
	}
	return nil
}

func validateSeedUsers(users []SeedUser) error {
	seen := make(map[string]struct{})
	for i, u := range users {
		if u.ID == "" {
			return fmt.Errorf("user at index %d has empty id", i)
		}
		key := u.ID + "/" + u.ServiceID
		if _, dup := seen[key]; dup {
			return fmt.Errorf("user '%s' is not unique", key)
		}
		seen[key] = struct{}{}
		if u.Password == "" {
			return fmt.Errorf("user '%s' has empty password", key)
		}
	}
	return nil
}
