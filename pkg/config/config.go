package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Client   ClientConfig   `yaml:"client"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Registry RegistryConfig `yaml:"registry"`
}

type LogConfig struct {
	File string `yaml:"file"` // empty means stdout
}

type ServerConfig struct {
	SettleDelay  Duration `yaml:"settle_delay"`
	BufferSize   int      `yaml:"buffer_size"`
	Interceptors struct {
		Logging   bool `yaml:"logging"`
		RateLimit struct {
			Enabled bool     `yaml:"enabled"`
			Rate    int64    `yaml:"rate"`
			Burst   int64    `yaml:"burst"`
			PerPeer bool     `yaml:"per_peer"`
			Window  Duration `yaml:"window"` // non-zero selects the sliding window limiter
		} `yaml:"rate_limit"`
	} `yaml:"interceptors"`
}

type ClientConfig struct {
	Timeout      Duration `yaml:"timeout"` // zero blocks forever
	BufferSize   int      `yaml:"buffer_size"`
	LoadBalancer string   `yaml:"load_balancer"` // round-robin/random
	Interceptors struct {
		Logging bool `yaml:"logging"`
	} `yaml:"interceptors"`
}

type MetricsConfig struct {
	Address string `yaml:"address"` // empty disables the /metrics endpoint
}

type RegistryConfig struct {
	Type    string `yaml:"type"` // empty/memory/etcd
	Service string `yaml:"service"`
	Codec   string `yaml:"codec"` // json/protobuf
	Etcd    struct {
		Endpoints   []string `yaml:"endpoints"`
		DialTimeout Duration `yaml:"dial_timeout"`
		KeyPrefix   string   `yaml:"key_prefix"`
		LeaseTTL    int64    `yaml:"lease_ttl"`
	} `yaml:"etcd"`
}

type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func Default() *Config {
	cfg := &Config{}
	cfg.Server.SettleDelay = Duration{50 * time.Millisecond}
	cfg.Server.BufferSize = 1024
	cfg.Server.Interceptors.RateLimit.Rate = 100
	cfg.Server.Interceptors.RateLimit.Burst = 100
	cfg.Client.BufferSize = 1024
	cfg.Client.LoadBalancer = "round-robin"
	cfg.Registry.Service = "addrecho"
	cfg.Registry.Codec = "json"
	cfg.Registry.Etcd.Endpoints = []string{"localhost:2379"}
	cfg.Registry.Etcd.DialTimeout = Duration{5 * time.Second}
	cfg.Registry.Etcd.KeyPrefix = "/addrecho/services"
	cfg.Registry.Etcd.LeaseTTL = 10
	return cfg
}

// Load reads path on top of Default. Keys absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.BufferSize <= 0 || c.Client.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive")
	}
	if c.Server.SettleDelay.Duration < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	if c.Client.Timeout.Duration < 0 {
		return fmt.Errorf("client timeout must not be negative")
	}
	rl := c.Server.Interceptors.RateLimit
	if rl.Enabled && (rl.Rate <= 0 || rl.Burst <= 0) {
		return fmt.Errorf("rate_limit rate and burst must be positive")
	}
	switch c.Registry.Type {
	case "", "memory", "etcd":
	default:
		return fmt.Errorf("unknown registry type %q", c.Registry.Type)
	}
	switch c.Registry.Codec {
	case "json", "protobuf":
	default:
		return fmt.Errorf("unknown registry codec %q", c.Registry.Codec)
	}
	switch c.Client.LoadBalancer {
	case "round-robin", "random":
	default:
		return fmt.Errorf("unknown load balancer %q", c.Client.LoadBalancer)
	}
	return nil
}
