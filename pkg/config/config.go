// Package config provides configuration loading for the wallet gateway.
// Configuration is resolved in three layers: built-in defaults, an optional
// YAML file, then environment variables (highest priority).
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/hashpoint/go-wallet-gateway/pkg/logging"
)

// Environment names recognised by the gateway.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config represents the application configuration
type Config struct {
	Environment string         `yaml:"environment" envconfig:"ENVIRONMENT"`
	Server      ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Storage     StorageConfig  `yaml:"storage" envconfig:"STORAGE"`
	Logging     logging.Config `yaml:"logging" envconfig:"LOGGING"`
	Session     SessionConfig  `yaml:"session" envconfig:"SESSION"`
	Wallet      WalletConfig   `yaml:"wallet" envconfig:"WALLET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host    string     `yaml:"host" envconfig:"HOST"`
	Port    int        `yaml:"port" envconfig:"PORT"`
	BaseURL string     `yaml:"base_url" envconfig:"BASE_URL"`
	CORS    CORSConfig `yaml:"cors" envconfig:"CORS"`
}

// Address returns the listen address in host:port form
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CORSConfig contains CORS settings for the public API
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `yaml:"allowed_methods" envconfig:"ALLOWED_METHODS"`
	AllowedHeaders   []string `yaml:"allowed_headers" envconfig:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `yaml:"exposed_headers" envconfig:"EXPOSED_HEADERS"`
	AllowCredentials bool     `yaml:"allow_credentials" envconfig:"ALLOW_CREDENTIALS"`
	MaxAge           int      `yaml:"max_age" envconfig:"MAX_AGE"` // seconds
}

// StorageConfig contains identity storage configuration
type StorageConfig struct {
	Type    string        `yaml:"type" envconfig:"TYPE"` // memory, mongodb
	MongoDB MongoDBConfig `yaml:"mongodb" envconfig:"MONGODB"`
}

// MongoDBConfig contains MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string `yaml:"uri" envconfig:"URI"`
	Database string `yaml:"database" envconfig:"DATABASE"`
	Timeout  int    `yaml:"timeout" envconfig:"TIMEOUT"` // seconds
}

// SessionConfig contains server-side session configuration
type SessionConfig struct {
	// CookieName is the name of the opaque session cookie.
	CookieName string `yaml:"cookie_name" envconfig:"COOKIE_NAME"`
	// TTLDays is the session (and cookie) lifetime in days.
	TTLDays int `yaml:"ttl_days" envconfig:"TTL_DAYS"`
	// Store selects where session records live.
	Store SessionStoreConfig `yaml:"store" envconfig:"STORE"`
}

// SessionStoreConfig contains session store configuration
type SessionStoreConfig struct {
	// Type is the session store type: "memory" or "redis"
	Type  string      `yaml:"type" envconfig:"TYPE"`
	Redis RedisConfig `yaml:"redis" envconfig:"REDIS"`
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Address   string `yaml:"address" envconfig:"ADDRESS"`
	Password  string `yaml:"password" envconfig:"PASSWORD"`
	DB        int    `yaml:"db" envconfig:"DB"`
	KeyPrefix string `yaml:"key_prefix" envconfig:"KEY_PREFIX"`
}

// WalletConfig contains wallet provider configuration
type WalletConfig struct {
	// PairingTimeout bounds how long a connect waits for wallet approval (seconds).
	PairingTimeout int `yaml:"pairing_timeout" envconfig:"PAIRING_TIMEOUT"`
	// PollInterval is the extension pairing poll interval (milliseconds, max 1000).
	PollInterval int `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`

	Extension ExtensionConfig `yaml:"extension" envconfig:"EXTENSION"`
	Relay     RelayConfig     `yaml:"relay" envconfig:"RELAY"`
	AltRelay  RelayConfig     `yaml:"alt_relay" envconfig:"ALT_RELAY"`
}

// ExtensionConfig configures the extension-based provider
type ExtensionConfig struct {
	// Endpoint is the local wallet extension message channel (ws:// URL).
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT"`
}

// RelayConfig configures a relay-based provider
type RelayConfig struct {
	URL           string `yaml:"url" envconfig:"URL"`
	ProjectID     string `yaml:"project_id" envconfig:"PROJECT_ID"`
	ProjectSecret string `yaml:"project_secret" envconfig:"PROJECT_SECRET"`
	// Network is the ledger network discriminator used in pairing namespaces.
	Network string `yaml:"network" envconfig:"NETWORK"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig()

	// Load from YAML file if provided (overrides defaults)
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, that's ok - we'll use defaults and env vars
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("GATEWAY", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible default values
func defaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			CORS: CORSConfig{
				AllowedOrigins:   []string{"http://localhost:3000"},
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
				AllowCredentials: true,
				MaxAge:           300,
			},
		},
		Storage: StorageConfig{
			Type: "memory",
			MongoDB: MongoDBConfig{
				URI:      "mongodb://localhost:27017",
				Database: "wallet_gateway",
				Timeout:  10,
			},
		},
		Logging: logging.DefaultConfig(),
		Session: SessionConfig{
			CookieName: "gateway_session",
			TTLDays:    7,
			Store: SessionStoreConfig{
				Type: "memory",
				Redis: RedisConfig{
					Address:   "localhost:6379",
					KeyPrefix: "gw:session:",
				},
			},
		},
		Wallet: WalletConfig{
			PairingTimeout: 60,
			PollInterval:   1000,
			Relay: RelayConfig{
				Network: "mainnet",
			},
			AltRelay: RelayConfig{
				Network: "mainnet",
			},
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("unknown environment: %q", c.Environment)
	}

	switch c.Storage.Type {
	case "memory":
	case "mongodb":
		if c.Storage.MongoDB.URI == "" {
			return fmt.Errorf("mongodb storage requires a URI")
		}
	default:
		return fmt.Errorf("unknown storage type: %q", c.Storage.Type)
	}

	switch c.Session.Store.Type {
	case "memory":
	case "redis":
		if c.Session.Store.Redis.Address == "" {
			return fmt.Errorf("redis session store requires an address")
		}
	default:
		return fmt.Errorf("unknown session store type: %q", c.Session.Store.Type)
	}

	if c.Session.TTLDays < 1 {
		return fmt.Errorf("session ttl must be at least one day")
	}

	if c.Wallet.PairingTimeout < 1 {
		return fmt.Errorf("pairing timeout must be positive")
	}
	if c.Wallet.PollInterval < 1 || c.Wallet.PollInterval > 1000 {
		return fmt.Errorf("poll interval must be between 1 and 1000 milliseconds")
	}

	return nil
}

// IsProduction reports whether the gateway runs in production mode.
// The development-only admin shortcut must never apply when this is true.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}
