package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port      string   `yaml:"port"`
		StaticDir string   `yaml:"staticDir"`
		Origins   []string `yaml:"origins"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Storage struct {
		// Driver is memory, postgres or mongo.
		Driver string `yaml:"driver"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Paper struct {
		TTL string `yaml:"ttl"`
	} `yaml:"paper"`
	Auth struct {
		JWTSecret  string `yaml:"jwtSecret"`
		CookieName string `yaml:"cookieName"`
		MaxAge     string `yaml:"maxAge"`
		Secure     bool   `yaml:"secure"`
	} `yaml:"auth"`
	Quiz struct {
		Grace string `yaml:"grace"`
		Tick  string `yaml:"tick"`
		// Linger keeps completed sessions readable; Idle drops untouched ones.
		Linger string `yaml:"linger"`
		Idle   string `yaml:"idle"`
		Sweep  string `yaml:"sweep"`
	} `yaml:"quiz"`
}

// DevJWTSecret signs tokens when the memory driver runs without a configured secret.
const DevJWTSecret = "dev-only-secret"

// ErrMissingJWTSecret is returned by Validate for persistent storage without a secret.
var ErrMissingJWTSecret = errors.New("auth.jwtSecret (JWT_SECRET) is required with postgres or mongo storage")

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" && c.Storage.Driver != "memory" {
		return ErrMissingJWTSecret
	}
	return nil
}

// Load reads YAML config from path, then applies environment overrides.
// A missing file is not an error; the service can run from env alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	case !os.IsNotExist(err):
		return cfg, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setString(&cfg.Postgres.URL, "DATABASE_URL")
	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.Database, "MONGO_DATABASE")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		switch {
		case cfg.Postgres.URL != "":
			cfg.Storage.Driver = "postgres"
		case cfg.Mongo.URI != "":
			cfg.Storage.Driver = "mongo"
		default:
			cfg.Storage.Driver = "memory"
		}
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "examprep"
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "session-token"
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
