package cli

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/boardkit/boardkit/pkg/errors"
)

// Config is the serve command's TOML configuration file.
//
//	[server]
//	addr = ":8080"
//
//	[store]
//	backend = "memory"      # or "mongo"
//	mongo_uri = "mongodb://localhost:27017"
//	mongo_db = "boardkit"
//
//	[redis]
//	addr = ""               # host:port enables cross-instance rooms
type Config struct {
	Server struct {
		Addr string `toml:"addr"`
	} `toml:"server"`
	Store struct {
		Backend  string `toml:"backend"`
		MongoURI string `toml:"mongo_uri"`
		MongoDB  string `toml:"mongo_db"`
	} `toml:"store"`
	Redis struct {
		Addr string `toml:"addr"`
	} `toml:"redis"`
}

// defaultConfig returns the configuration used when no file is given.
func defaultConfig() Config {
	var cfg Config
	cfg.Server.Addr = ":8080"
	cfg.Store.Backend = "memory"
	cfg.Store.MongoDB = appName
	return cfg
}

// loadConfig reads a TOML config file, layered over the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if cfg.Store.Backend != "memory" && cfg.Store.Backend != "mongo" {
		return cfg, errors.New(errors.ErrCodeInvalidInput, "unknown store backend %q", cfg.Store.Backend)
	}
	return cfg, nil
}
