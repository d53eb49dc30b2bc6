package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the game server.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Redis event log. An empty addr disables publishing.
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`

	// Auth
	TokenExpire    string `yaml:"token_expire"` // Go duration, "0" or "" = never
	PrivateKeyPath string `yaml:"private_key_path"`
	PublicKeyPath  string `yaml:"public_key_path"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultServer returns a Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		BindAddress: "0.0.0.0",
		Port:        8080,
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "fourrow",
			Password: "fourrow",
			DBName:   "fourrow",
			SSLMode:  "disable",
		},
	}
}

// Load reads the YAML config file, then applies environment variable
// overrides. A missing file yields the defaults.
func Load(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Server) {
	setString(&cfg.BindAddress, "BIND_ADDRESS")
	setInt(&cfg.Port, "PORT")
	setString(&cfg.Database.Host, "PG_HOST")
	setInt(&cfg.Database.Port, "PG_PORT")
	setString(&cfg.Database.User, "POSTGRES_USER")
	setString(&cfg.Database.Password, "POSTGRES_PASSWORD")
	setString(&cfg.Database.DBName, "PG_DATABASE")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setInt(&cfg.RedisDB, "REDIS_DB")
	setString(&cfg.TokenExpire, "TOKEN_EXPIRE_TIME")
	setString(&cfg.PrivateKeyPath, "JWT_PRIVATE_KEY_PATH")
	setString(&cfg.PublicKeyPath, "JWT_PUBLIC_KEY_PATH")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
