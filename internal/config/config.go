package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/michaelbrown/rubybox/internal/logger"
	"github.com/michaelbrown/rubybox/internal/sandbox"
)

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"` // empty uses the built-in catalog
}

type SandboxConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MemoryBytes    int64         `mapstructure:"memory_bytes"`
	NanoCPUs       int64         `mapstructure:"nano_cpus"`
	Network        bool          `mapstructure:"network"`
	MaxOutputBytes int           `mapstructure:"max_output_bytes"`
	Command        []string      `mapstructure:"command"`
}

type DockerConfig struct {
	Host string `mapstructure:"host"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Docker  DockerConfig  `mapstructure:"docker"`
	Log     logger.Config `mapstructure:"log"`
}

// Load reads rubybox.yaml from the working directory or ~/.rubybox. A missing
// file is fine; RUBYBOX_* environment variables override file values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("rubybox")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.rubybox")
	return load(v)
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("RUBYBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := sandbox.DefaultPolicy()

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".rubybox", "rubybox.db"))
	v.SetDefault("catalog.path", "")
	v.SetDefault("sandbox.timeout", def.Timeout)
	v.SetDefault("sandbox.memory_bytes", def.Memory)
	v.SetDefault("sandbox.nano_cpus", def.NanoCPUs)
	v.SetDefault("sandbox.network", def.Network)
	v.SetDefault("sandbox.max_output_bytes", def.MaxOutputBytes)
	v.SetDefault("sandbox.command", def.Command)
	v.SetDefault("docker.host", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", c.Server.ShutdownTimeout)
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	return nil
}

// Policy returns the sandbox limits described by the config.
func (c *Config) Policy() sandbox.Policy {
	return sandbox.Policy{
		Memory:         c.Sandbox.MemoryBytes,
		NanoCPUs:       c.Sandbox.NanoCPUs,
		Timeout:        c.Sandbox.Timeout,
		Network:        c.Sandbox.Network,
		MaxOutputBytes: c.Sandbox.MaxOutputBytes,
		Command:        c.Sandbox.Command,
	}
}
