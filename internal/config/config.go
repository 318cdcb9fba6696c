// Package config loads server settings from defaults, an optional config file,
// a .env file and ARENA_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"cardarena/internal/game/match"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const EnvPrefix = "ARENA"

// Config is the full server configuration, one field per top-level key.
type Config struct {
	HTTP     HTTP     `mapstructure:"http"`
	Game     Game     `mapstructure:"game"`
	Queue    Queue    `mapstructure:"queue"`
	Auth     Auth     `mapstructure:"auth"`
	Postgres Postgres `mapstructure:"postgres"`
	Redis    Redis    `mapstructure:"redis"`
	NATS     NATS     `mapstructure:"nats"`
	Consul   Consul   `mapstructure:"consul"`
	Log      Log      `mapstructure:"log"`
}

// HTTP is the listener.
type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// Game holds the per-match rules.
type Game struct {
	InitialHP          int           `mapstructure:"initial_hp"`
	InitialCoins       int           `mapstructure:"initial_coins"`
	InitialCardsInHand int           `mapstructure:"initial_cards_in_hand"`
	CoinsPerRound      int           `mapstructure:"coins_per_round"`
	TurnTimeLimit      time.Duration `mapstructure:"turn_time_limit"`
}

// Queue holds matchmaking settings.
type Queue struct {
	Countdown time.Duration `mapstructure:"countdown"`
}

// Auth configures session tokens.
type Auth struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	CookieName string `mapstructure:"cookie_name"`
	// AutoProvision creates unknown users on their first connection.
	AutoProvision bool `mapstructure:"auto_provision"`
}

// Postgres is optional; an empty DSN selects the in-memory store.
type Postgres struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Redis is optional; an empty Addr disables the catalog cache.
type Redis struct {
	Addr       string        `mapstructure:"addr"`
	CatalogTTL time.Duration `mapstructure:"catalog_ttl"`
}

// NATS is optional; an empty URL disables domain events.
type NATS struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// Consul is optional; empty Addrs skips registration.
type Consul struct {
	Addrs       string `mapstructure:"addrs"`
	ServiceName string `mapstructure:"service_name"`
	// AdvertiseHost is the host the agent polls for health; hostname when empty.
	AdvertiseHost string `mapstructure:"advertise_host"`
}

type Log struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")

	def := match.DefaultConfig()
	v.SetDefault("game.initial_hp", def.InitialHP)
	v.SetDefault("game.initial_coins", def.InitialCoins)
	v.SetDefault("game.initial_cards_in_hand", def.InitialCardsInHand)
	v.SetDefault("game.coins_per_round", def.CoinsPerRound)
	v.SetDefault("game.turn_time_limit", def.TurnTimeLimit)

	v.SetDefault("queue.countdown", 5*time.Second)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.cookie_name", "jwt")
	v.SetDefault("auth.auto_provision", false)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.catalog_ttl", 10*time.Minute)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "arena")

	v.SetDefault("consul.addrs", "")
	v.SetDefault("consul.service_name", "arena")
	v.SetDefault("consul.advertise_host", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// Load reads configuration. file may be empty, in which case .arena.{toml,yaml,json}
// is looked up in the working directory and the home directory.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if file != "" {
		path, err := homedir.Expand(file)
		if err != nil {
			return nil, fmt.Errorf("expand config path: %w", err)
		}
		v.SetConfigFile(filepath.Clean(path))
	} else {
		v.SetConfigName(".arena")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if err := c.Match().Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Queue.Countdown <= 0 {
		result = multierror.Append(result, fmt.Errorf("queue.countdown must be positive"))
	}
	if c.Auth.JWTSecret == "" {
		result = multierror.Append(result, fmt.Errorf("auth.jwt_secret is required"))
	}
	if c.HTTP.Addr == "" {
		result = multierror.Append(result, fmt.Errorf("http.addr is required"))
	}
	return result.ErrorOrNil()
}

// Match converts the game section into engine settings.
func (c *Config) Match() match.Config {
	return match.Config{
		InitialHP:          c.Game.InitialHP,
		InitialCoins:       c.Game.InitialCoins,
		InitialCardsInHand: c.Game.InitialCardsInHand,
		CoinsPerRound:      c.Game.CoinsPerRound,
		TurnTimeLimit:      c.Game.TurnTimeLimit,
	}
}
