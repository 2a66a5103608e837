// Package config loads kraken's server configuration from a YAML/JSON
// file plus environment overrides: New() returns sane defaults and Load()
// layers godotenv -> file -> envdecode -> DATABASE_URL override.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" env:"SERVER_HOST"`
	Port int    `json:"port" yaml:"port" env:"SERVER_PORT"`
}

// RPCConfig controls the leech-facing RPC listener.
type RPCConfig struct {
	Host string `json:"host" yaml:"host" env:"RPC_HOST"`
	Port int    `json:"port" yaml:"port" env:"RPC_PORT"`
}

// DatabaseConfig controls persistence. DSN, if set, wins outright; the
// discrete fields exist so a deployment can supply host/user/password
// separately and let ConnectionString assemble the DSN.
type DatabaseConfig struct {
	DSN             string `json:"dsn" yaml:"dsn" env:"DATABASE_DSN"`
	Host            string `json:"host" yaml:"host" env:"DATABASE_HOST"`
	Port            int    `json:"port" yaml:"port" env:"DATABASE_PORT"`
	User            string `json:"user" yaml:"user" env:"DATABASE_USER"`
	Password        string `json:"password" yaml:"password" env:"DATABASE_PASSWORD"`
	Name            string `json:"name" yaml:"name" env:"DATABASE_NAME"`
	SSLMode         string `json:"sslmode" yaml:"sslmode" env:"DATABASE_SSLMODE"`
	MaxOpenConns    int    `json:"max_open_conns" yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// ConnectionString assembles a libpq DSN from the discrete fields; used
// only when DSN itself is empty.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// LoggingConfig controls pkg/logger.New.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" yaml:"format" env:"LOG_FORMAT"`
	Output     string `json:"output" yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `json:"file_prefix" yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// SecurityConfig carries the session key every signed artifact (OAuth
// state cookies, access/refresh JWTs, editor-cache spill integrity tags)
// is derived from via HKDF.
type SecurityConfig struct {
	SessionKey string `json:"session_key" yaml:"session_key" env:"KRAKEN_SESSION_KEY"`
	OriginURL  string `json:"origin_url" yaml:"origin_url" env:"KRAKEN_ORIGIN_URL"`
}

// StorageConfig controls where on-disk state (editor-cache spill files)
// lives.
type StorageConfig struct {
	DataDir string `json:"data_dir" yaml:"data_dir" env:"KRAKEN_DATA_DIR"`
}

// DehashedConfig controls the rate-limited Dehashed API client dispatch
// uses when servicing a dehashed-query attack.
type DehashedConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" env:"DEHASHED_REQUESTS_PER_SECOND"`
	Burst             int     `json:"burst" yaml:"burst" env:"DEHASHED_BURST"`
}

// Config is kraken's top-level configuration.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	RPC      RPCConfig      `json:"rpc" yaml:"rpc"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Security SecurityConfig `json:"security" yaml:"security"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Dehashed DehashedConfig `json:"dehashed" yaml:"dehashed"`
}

// New returns a Config populated with every optional default; required
// fields stay empty until Load fills them.
func New() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		RPC:    RPCConfig{Host: "0.0.0.0", Port: 8081},
		Database: DatabaseConfig{
			SSLMode:        "disable",
			MaxOpenConns:   10,
			MaxIdleConns:   5,
			MigrateOnStart: true,
		},
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stdout", FilePrefix: "kraken"},
		Storage: StorageConfig{DataDir: "/var/lib/kraken"},
		Dehashed: DehashedConfig{RequestsPerSecond: 5, Burst: 5},
	}
}

// Load layers a .env file, an optional CONFIG_FILE (or configs/kraken.yaml
// default), environment variables, and the DATABASE_URL override, then
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadYAMLFile("configs/kraken.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyDatabaseURLOverride(cfg)
	return cfg, cfg.Validate()
}

// LoadFile loads a YAML configuration file without godotenv or envdecode;
// only the DATABASE_URL override is read from the environment. Used by
// tests and one-off tooling.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadYAMLFile(path, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	return cfg, cfg.Validate()
}

// LoadConfig loads a JSON configuration snippet, used by tests and
// tooling that prefer JSON fixtures over YAML.
func LoadConfig(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	return cfg, cfg.Validate()
}

func loadYAMLFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyDatabaseURLOverride(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

// Validate fails fast on every required field left empty or malformed,
// aggregating every problem into one error instead of stopping at the
// first.
func (c *Config) Validate() error {
	var problems []string

	if c.Database.DSN == "" && c.Database.Host == "" {
		problems = append(problems, "database: one of DATABASE_DSN or DATABASE_HOST must be set")
	}
	if c.Security.SessionKey == "" {
		problems = append(problems, "security: KRAKEN_SESSION_KEY is required")
	} else if len(c.Security.SessionKey) < 32 {
		problems = append(problems, "security: KRAKEN_SESSION_KEY must be at least 32 bytes")
	}
	if c.Security.OriginURL == "" {
		problems = append(problems, "security: KRAKEN_ORIGIN_URL is required")
	}
	if c.Storage.DataDir == "" {
		problems = append(problems, "storage: data_dir must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server: port "+strconv.Itoa(c.Server.Port)+" out of range")
	}
	if c.RPC.Port <= 0 || c.RPC.Port > 65535 {
		problems = append(problems, "rpc: port "+strconv.Itoa(c.RPC.Port)+" out of range")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration:\n  - " + strings.Join(problems, "\n  - "))
}

// DSN resolves the effective database connection string: the explicit
// DSN field wins, falling back to the assembled discrete-field form.
func (c *Config) DSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return c.Database.ConnectionString()
}
