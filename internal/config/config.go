package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL   = "http://localhost:5000/api"
	DefaultShareURL = "http://localhost:5173"
	fileName        = "config.yml"
)

type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type Config struct {
	APIURL       string        `yaml:"api_url"`
	ShareBaseURL string        `yaml:"share_base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	RateLimit    float64       `yaml:"rate_limit"` // requests per second, 0 disables
	RateBurst    int           `yaml:"rate_burst"`
	LogLevel     string        `yaml:"log_level"`
	Theme        string        `yaml:"theme"`
	PersistOrder bool          `yaml:"persist_order"`
	S3           S3Config      `yaml:"s3"`

	// Dir holds credentials and the log file. Not read from YAML.
	Dir string `yaml:"-"`
}

// Defaults returns the configuration used when no file exists.
func Defaults() Config {
	return Config{
		APIURL:       DefaultAPIURL,
		ShareBaseURL: DefaultShareURL,
		Timeout:      15 * time.Second,
		RateLimit:    10,
		RateBurst:    5,
		LogLevel:     "info",
		Theme:        "classic",
		PersistOrder: true,
		S3:           S3Config{Region: "us-east-1", UsePathStyle: true},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (or <dir>/config.yml when path is empty), then .env, then environment.
// A missing file is not an error.
func Load(path, dir string) (Config, error) {
	cfg := Defaults()
	cfg.Dir = dir
	if path == "" && dir != "" {
		path = filepath.Join(dir, fileName)
	}

	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			dec := yaml.NewDecoder(f)
			if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return cfg, fmt.Errorf("open config: %w", err)
		}
	}

	// .env never overrides variables already set in the environment.
	_ = godotenv.Load()

	applyEnv(&cfg)
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.ShareBaseURL = strings.TrimRight(cfg.ShareBaseURL, "/")
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("SMARTBOARD_API_URL")); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SMARTBOARD_SHARE_URL")); v != "" {
		cfg.ShareBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SMARTBOARD_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("SMARTBOARD_THEME")); v != "" {
		cfg.Theme = v
	}
	if v := strings.TrimSpace(os.Getenv("SMARTBOARD_PERSIST_ORDER")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PersistOrder = b
		}
	}
	if v := os.Getenv("SMARTBOARD_S3_ACCESS_KEY"); v != "" {
		cfg.S3.AccessKey = v
	}
	if v := os.Getenv("SMARTBOARD_S3_SECRET_KEY"); v != "" {
		cfg.S3.SecretKey = v
	}
}

// Override applies the root flags, which win over every other source, and
// validates the result again. Empty values leave the field unchanged.
func (c *Config) Override(apiURL, theme string) error {
	if v := strings.TrimSpace(apiURL); v != "" {
		c.APIURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(theme); v != "" {
		c.Theme = v
	}
	return c.Validate()
}

// Validate checks fields that would otherwise fail late.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("api_url is required")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api_url must be an http(s) URL, got %q", c.APIURL)
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return errors.New("rate_limit and rate_burst must not be negative")
	}
	return nil
}
