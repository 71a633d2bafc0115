package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Game        GameConfig        `mapstructure:"game"`
	Development DevelopmentConfig `mapstructure:"development"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Feed        FeedConfig        `mapstructure:"feed"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type GameConfig struct {
	Seed  int64 `mapstructure:"seed"` // 0 picks a time-based seed
	Turns int   `mapstructure:"turns"`
}

type DevelopmentConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"` // empty disables auth
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type FeedConfig struct {
	URL string `mapstructure:"url"`
}

type ArchiveConfig struct {
	Path string `mapstructure:"path"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads config.yaml from the working directory or ./config, with
// PIECEWALK_* environment overrides. A missing file yields the defaults.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			return unmarshal(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return unmarshal(v)
}

// LoadFile reads an explicit config file.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	// Enable environment variables
	v.SetEnvPrefix("PIECEWALK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	defaults := loadDefaults()
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("game.seed", defaults.Game.Seed)
	v.SetDefault("game.turns", defaults.Game.Turns)
	v.SetDefault("development.debug", defaults.Development.Debug)
	v.SetDefault("development.log_level", defaults.Development.LogLevel)
	v.SetDefault("auth.secret", defaults.Auth.Secret)
	v.SetDefault("auth.issuer", defaults.Auth.Issuer)
	v.SetDefault("auth.token_ttl", defaults.Auth.TokenTTL)
	v.SetDefault("feed.url", defaults.Feed.URL)
	v.SetDefault("archive.path", defaults.Archive.Path)

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Game.Turns < 0 {
		return nil, fmt.Errorf("game.turns must not be negative, got %d", cfg.Game.Turns)
	}

	return &cfg, nil
}

func loadDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Game: GameConfig{
			Turns: 10,
		},
		Development: DevelopmentConfig{
			Debug:    false,
			LogLevel: "info",
		},
		Auth: AuthConfig{
			Issuer:   "piecewalk",
			TokenTTL: 24 * time.Hour,
		},
		Feed: FeedConfig{
			URL: "ws://localhost:8080/ws",
		},
	}
}
