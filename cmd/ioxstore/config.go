package main

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the contents of the configuration file. Every setting can also
// be given as a command line flag, which wins over the file.
//
// An example file:
//
//	location = "s3://localhost:9000/iox/objects"
//	server_id = 1
//	database = "clouds"
//	log_level = "debug"
type Config struct {
	Location          string `toml:"location"`
	Prefix            string `toml:"prefix"`
	ServerID          uint32 `toml:"server_id"`
	Database          string `toml:"database"`
	SentryDSN         string `toml:"sentry_dsn"`
	LogLevel          string `toml:"log_level"`
	Port              string `toml:"port"`
	MaxConcurrentPuts int    `toml:"max_concurrent_puts"`
}

func defaultConfig() Config {
	return Config{
		Location:          "memory",
		LogLevel:          "info",
		Port:              "8080",
		MaxConcurrentPuts: 10,
	}
}

// loadConfig reads the file at path over the default configuration.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.Errorf("unknown config keys in %s: %v", path, undecoded)
	}
	return cfg, nil
}

// newLogger makes a production logger writing at the given level.
func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(lvl)
	return c.Build()
}
