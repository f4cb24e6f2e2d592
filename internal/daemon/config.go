// Package daemon loads Focal's configuration and wires the server.
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the full contents of ~/.focal/config.toml.
type Config struct {
	API       APIConfig       `toml:"api"`
	Database  DatabaseConfig  `toml:"database"`
	Credits   CreditsConfig   `toml:"credits"`
	Generator GeneratorConfig `toml:"generator"`
	Debate    DebateConfig    `toml:"debate"`
	Auth      AuthConfig      `toml:"auth"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

type APIConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	RequestTimeout string   `toml:"request_timeout"`
}

type DatabaseConfig struct {
	Dir string `toml:"dir"`
}

type CreditsConfig struct {
	InitialGrant int64 `toml:"initial_grant"`
	RefineCost   int64 `toml:"refine_cost"`
}

type GeneratorConfig struct {
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	CallTimeout string  `toml:"call_timeout"`
}

type DebateConfig struct {
	Rounds     int `toml:"rounds"`
	MaxWorkers int `toml:"max_workers"`
}

// AuthConfig selects how bearer tokens are verified: "google" checks
// Google ID tokens against ClientID, "jwt" checks HS256 tokens signed
// with JWTSecret.
type AuthConfig struct {
	Mode           string `toml:"mode"`
	GoogleClientID string `toml:"google_client_id"`
	JWTSecret      string `toml:"jwt_secret"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8000,
			CORSOrigins:    []string{"http://localhost:3000"},
			RequestTimeout: "5m",
		},
		Database: DatabaseConfig{
			Dir: filepath.Join(Home(), "data"),
		},
		Credits: CreditsConfig{
			InitialGrant: 10,
			RefineCost:   2,
		},
		Generator: GeneratorConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:       "gemini-2.0-flash",
			Temperature: 0.7,
			MaxTokens:   1024,
			CallTimeout: "60s",
		},
		Debate: DebateConfig{
			Rounds:     2,
			MaxWorkers: 5,
		},
		Auth: AuthConfig{
			Mode: "google",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Home returns the Focal home directory ($FOCAL_HOME or ~/.focal).
func Home() string {
	if h := os.Getenv("FOCAL_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".focal"
	}
	return filepath.Join(home, ".focal")
}

// DefaultConfigPath is where Load looks when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// Load reads path over DefaultConfig. A missing file is not an error.
// A .env file in the working directory is loaded next, then environment
// variables override secrets and deployment settings.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	_ = godotenv.Load() // .env is optional
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := firstEnv("FOCAL_LLM_API_KEY", "GEMINI_API_KEY"); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv("FOCAL_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("FOCAL_GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.GoogleClientID = v
	}
	if v := os.Getenv("FOCAL_DB_DIR"); v != "" {
		cfg.Database.Dir = v
	}
	if v := os.Getenv("FOCAL_CORS_ORIGINS"); v != "" {
		cfg.API.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = p
		}
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks values that would otherwise fail at first use.
func (c Config) Validate() error {
	var errs []error
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if c.Credits.InitialGrant < 0 {
		errs = append(errs, errors.New("credits.initial_grant must not be negative"))
	}
	if c.Credits.RefineCost <= 0 {
		errs = append(errs, errors.New("credits.refine_cost must be positive"))
	}
	if c.Debate.Rounds <= 0 {
		errs = append(errs, errors.New("debate.rounds must be positive"))
	}
	if c.Debate.MaxWorkers <= 0 {
		errs = append(errs, errors.New("debate.max_workers must be positive"))
	}
	switch c.Auth.Mode {
	case "google", "jwt":
	default:
		errs = append(errs, fmt.Errorf("auth.mode %q: want google or jwt", c.Auth.Mode))
	}
	if _, err := parseDuration(c.API.RequestTimeout, 0); err != nil {
		errs = append(errs, fmt.Errorf("api.request_timeout: %w", err))
	}
	if _, err := parseDuration(c.Generator.CallTimeout, 0); err != nil {
		errs = append(errs, fmt.Errorf("generator.call_timeout: %w", err))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// RequestTimeout returns api.request_timeout, defaulting to 5m.
func (c Config) RequestTimeout() time.Duration {
	d, _ := parseDuration(c.API.RequestTimeout, 5*time.Minute)
	return d
}

// CallTimeout returns generator.call_timeout, defaulting to 60s.
func (c Config) CallTimeout() time.Duration {
	d, _ := parseDuration(c.Generator.CallTimeout, 60*time.Second)
	return d
}

// parseDuration parses s, returning def for an empty string.
func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def, err
	}
	if d <= 0 {
		return def, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}
