package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	sm "cpm/models"
)

const EnvPrefix = "CPM"

type Config struct {
	Simulation sm.SimulationSettings `mapstructure:"simulation"`
	Database   DatabaseConfig        `mapstructure:"database"`
	Server     ServerConfig          `mapstructure:"server"`
	Logging    LoggingConfig         `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Url string `mapstructure:"url"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CorsOrigins []string `mapstructure:"cors_origins"`
	InputRoot   string   `mapstructure:"input_root"` // base of the input directories clients may name
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// SetDefaults registers every key so AutomaticEnv can resolve it through Unmarshal
func SetDefaults(v *viper.Viper) {
	v.SetDefault("simulation.num_trials", 10)
	v.SetDefault("simulation.chunk_size", 10_000)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("database.url", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.input_root", "input")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads cpm.yaml from the first config directory that has one, then applies CPM_ prefixed
// environment variables on top. A missing config file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	}
	v.SetConfigName("cpm")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home + "/.cpm")
	}
	v.AddConfigPath("/etc/cpm")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the plain DATABASE_URL from .env keeps working next to CPM_DATABASE_URL
	if err := v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("No config file found, using defaults and environment")
	} else {
		log.Debugf("Using config file %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	return &cfg, nil
}

// SetupLogging applies the logging section to the standard logrus logger
func SetupLogging(cfg LoggingConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return nil
}
