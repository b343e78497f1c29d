package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved configuration for the puppetstage engine.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Audio  AudioConfig  `mapstructure:"audio" yaml:"audio"`
	Stage  StageConfig  `mapstructure:"stage" yaml:"stage"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

type StoreConfig struct {
	Backend   string          `mapstructure:"backend" yaml:"backend"` // "memory", "cassandra"
	Cassandra CassandraConfig `mapstructure:"cassandra" yaml:"cassandra"`
}

type CassandraConfig struct {
	Hosts       []string      `mapstructure:"hosts" yaml:"hosts"`
	Keyspace    string        `mapstructure:"keyspace" yaml:"keyspace"`
	Consistency string        `mapstructure:"consistency" yaml:"consistency"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Username    string        `mapstructure:"username" yaml:"username"`
	Password    string        `mapstructure:"password" yaml:"password"`
}

type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate" yaml:"sample_rate"`

	// Playback opens the system speaker for sound events. Disable it on
	// headless hosts.
	Playback bool `mapstructure:"playback" yaml:"playback"`

	// HMDHint is a case-insensitive pattern matched against device names.
	// An input grouped with a matching device is preferred for recording.
	HMDHint string `mapstructure:"hmd_hint" yaml:"hmd_hint"`
}

type StageConfig struct {
	// TickInterval is the cadence of the update loop that dispatches
	// elapsed show events, the server-side stand-in for a render frame.
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
}

var defaultConfig = Config{
	Server: ServerConfig{
		Port: 8723,
	},
	Store: StoreConfig{
		Backend: "memory",
		Cassandra: CassandraConfig{
			Hosts:       []string{"127.0.0.1"},
			Keyspace:    "puppetstage",
			Consistency: "QUORUM",
			Timeout:     5 * time.Second,
		},
	},
	Audio: AudioConfig{
		SampleRate: 48000,
		Playback:   true,
		HMDHint:    "vive",
	},
	Stage: StageConfig{
		TickInterval: 16 * time.Millisecond,
	},
}

// DefaultPath is the config file consulted when --config is not given.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "puppetstage.yaml")
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

// Load reads a YAML config file and merges it over the defaults. A missing
// file is not an error; the defaults apply unchanged.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = DefaultPath()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("PUPPETSTAGE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got: %d", c.Server.Port)
	}

	switch strings.ToLower(c.Store.Backend) {
	case "memory":
	case "cassandra":
		if len(c.Store.Cassandra.Hosts) == 0 {
			return fmt.Errorf("store.cassandra.hosts cannot be empty")
		}
		if c.Store.Cassandra.Keyspace == "" {
			return fmt.Errorf("store.cassandra.keyspace is required")
		}
		if c.Store.Cassandra.Timeout <= 0 {
			return fmt.Errorf("store.cassandra.timeout must be > 0, got: %s", c.Store.Cassandra.Timeout)
		}
	default:
		return fmt.Errorf("store.backend must be 'memory' or 'cassandra', got: %s", c.Store.Backend)
	}

	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0, got: %d", c.Audio.SampleRate)
	}
	if c.Stage.TickInterval <= 0 {
		return fmt.Errorf("stage.tick_interval must be > 0, got: %s", c.Stage.TickInterval)
	}
	return nil
}

// Save writes the configuration as YAML to the given path, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.Set("server", map[string]any{
		"port": c.Server.Port,
	})
	v.Set("store", map[string]any{
		"backend": c.Store.Backend,
		"cassandra": map[string]any{
			"hosts":       c.Store.Cassandra.Hosts,
			"keyspace":    c.Store.Cassandra.Keyspace,
			"consistency": c.Store.Cassandra.Consistency,
			"timeout":     c.Store.Cassandra.Timeout.String(),
			"username":    c.Store.Cassandra.Username,
			"password":    c.Store.Cassandra.Password,
		},
	})
	v.Set("audio", map[string]any{
		"sample_rate": c.Audio.SampleRate,
		"playback":    c.Audio.Playback,
		"hmd_hint":    c.Audio.HMDHint,
	})
	v.Set("stage", map[string]any{
		"tick_interval": c.Stage.TickInterval.String(),
	})

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("error writing config file %s: %w", path, err)
	}
	return nil
}
