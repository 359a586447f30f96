// Package config loads the client settings from an optional YAML file and
// the environment. Environment variables win over the file.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"taskboard/gateway"
	"taskboard/mutator"
)

const (
	DefaultAPIURL  = "http://localhost:1337/api"
	DefaultProfile = "default"

	TokenStoreFile  = "file"
	TokenStoreRedis = "redis"
)

type MutatorConfig struct {
	Workers        int           `yaml:"workers"`
	Buffer         int           `yaml:"buffer"`
	HandoffTimeout time.Duration `yaml:"handoff_timeout"`
}

type ServeConfig struct {
	Addr           string        `yaml:"addr"`
	Token          string        `yaml:"token"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

type Config struct {
	APIURL       string            `yaml:"api_url"`
	Preset       string            `yaml:"preset"`
	Source       string            `yaml:"source"`
	IDField      string            `yaml:"id_field"`
	Envelope     *bool             `yaml:"envelope"`
	CategoryLink string            `yaml:"category_link"`
	FieldNames   string            `yaml:"field_names"`
	Timeout      time.Duration     `yaml:"timeout"`
	Endpoints    gateway.Endpoints `yaml:"endpoints"`

	// Token overrides the stored session token.
	Token      string `yaml:"token"`
	Profile    string `yaml:"profile"`
	TokenStore string `yaml:"token_store"`
	// TokenPath overrides the per-profile token file location.
	TokenPath string `yaml:"token_path"`
	RedisURL   string `yaml:"redis"`

	Debug   bool          `yaml:"debug"`
	Mutator MutatorConfig `yaml:"mutator"`
	Serve   ServeConfig   `yaml:"serve"`
}

func Default() Config {
	return Config{
		APIURL:     DefaultAPIURL,
		Preset:     gateway.PresetDefault,
		Profile:    DefaultProfile,
		TokenStore: TokenStoreFile,
		Mutator: MutatorConfig{
			Workers:        4,
			Buffer:         64,
			HandoffTimeout: 15 * time.Millisecond,
		},
		Serve: ServeConfig{
			Addr:           "127.0.0.1:8787",
			IdempotencyTTL: 24 * time.Hour,
		},
	}
}

// DefaultPath is the config file looked up when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "taskboard", "config.yaml")
}

// Load reads path over the defaults and applies the environment. A missing
// file is only an error when required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func (c *Config) applyEnv() error {
	envStr(&c.APIURL, "TASKBOARD_API_URL")
	envStr(&c.Token, "TASKBOARD_TOKEN")
	envStr(&c.Preset, "TASKBOARD_PRESET")
	envStr(&c.Source, "TASKBOARD_SOURCE")
	envStr(&c.FieldNames, "TASKBOARD_FIELD_NAMES")
	envStr(&c.Profile, "TASKBOARD_PROFILE")
	envStr(&c.TokenStore, "TASKBOARD_TOKEN_STORE")
	envStr(&c.TokenPath, "TASKBOARD_TOKEN_PATH")
	envStr(&c.Serve.Addr, "TASKBOARD_SERVE_ADDR")
	envStr(&c.Serve.Token, "TASKBOARD_SERVE_TOKEN")
	envStr(&c.RedisURL, "REDIS_CONNECTION_STRING")

	if err := envDur(&c.Timeout, "TASKBOARD_TIMEOUT"); err != nil {
		return err
	}
	if err := envInt(&c.Mutator.Workers, "MUTATOR_WORKERS"); err != nil {
		return err
	}
	if err := envInt(&c.Mutator.Buffer, "MUTATOR_BUFFER"); err != nil {
		return err
	}
	if err := envDur(&c.Mutator.HandoffTimeout, "MUTATOR_HANDOFF_TIMEOUT"); err != nil {
		return err
	}
	if err := envDur(&c.Serve.IdempotencyTTL, "DEDUPER_TTL"); err != nil {
		return err
	}
	if v := os.Getenv("DEBUG"); v != "" {
		if dbg, err := strconv.ParseBool(v); err == nil {
			c.Debug = dbg
		}
	}
	return nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("config: api_url is required")
	}
	if strings.TrimSpace(c.Profile) == "" {
		return errors.New("config: profile is required")
	}
	switch c.TokenStore {
	case TokenStoreFile:
	case TokenStoreRedis:
		if c.RedisURL == "" {
			return errors.New("config: token_store redis needs a redis connection string")
		}
	default:
		return fmt.Errorf("config: unknown token_store %q", c.TokenStore)
	}
	return nil
}

// Gateway builds the gateway configuration: the preset first, then every
// field set explicitly.
func (c Config) Gateway(logger *log.Logger) (gateway.Config, error) {
	gc, err := gateway.Preset(c.Preset, c.APIURL)
	if err != nil {
		return gateway.Config{}, err
	}
	if c.Source != "" {
		gc.Source = c.Source
	}
	if c.IDField != "" {
		gc.IDField = c.IDField
	}
	if c.Envelope != nil {
		gc.Envelope = *c.Envelope
	}
	if c.CategoryLink != "" {
		gc.CategoryLink = c.CategoryLink
	}
	if c.FieldNames != "" {
		gc.FieldNames = c.FieldNames
	}
	gc.Timeout = c.Timeout
	gc.Endpoints = overlayEndpoints(gc.Endpoints, c.Endpoints)
	gc.Token = c.Token
	gc.Logger = logger
	return gc, nil
}

// MutatorOptions converts the mutator section. Report is left to the caller.
func (c Config) MutatorOptions(logger *log.Logger) mutator.Options {
	return mutator.Options{
		Logger:         logger,
		Workers:        c.Mutator.Workers,
		Buffer:         c.Mutator.Buffer,
		HandoffTimeout: c.Mutator.HandoffTimeout,
	}
}

// RedisOptions parses RedisURL. Besides redis:// URLs it accepts the
// "host:port,password=...,ssl=true" connection string form. It returns nil
// when no Redis is configured.
func (c Config) RedisOptions() *redis.Options {
	if c.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(c.RedisURL)
	if err == nil {
		return opts
	}
	parts := strings.Split(c.RedisURL, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func overlayEndpoints(base, over gateway.Endpoints) gateway.Endpoints {
	pick := func(b, o string) string {
		if o != "" {
			return o
		}
		return b
	}
	return gateway.Endpoints{
		Categories: pick(base.Categories, over.Categories),
		Tasks:      pick(base.Tasks, over.Tasks),
		CreateTask: pick(base.CreateTask, over.CreateTask),
		Task:       pick(base.Task, over.Task),
		Login:      pick(base.Login, over.Login),
		Register:   pick(base.Register, over.Register),
		Me:         pick(base.Me, over.Me),
	}
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	*dst = n
	return nil
}

func envDur(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	*dst = d
	return nil
}
