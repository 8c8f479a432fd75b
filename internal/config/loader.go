package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. SPRINT_LLM_API_KEY.
const EnvPrefix = "SPRINT"

// defaults lists every known key so viper's AutomaticEnv can bind it.
var defaults = map[string]interface{}{
	"llm.model":                     "llama3",
	"llm.api_key":                   "",
	"llm.base_url":                  "http://localhost:11434",
	"llm.temperature":               0.7,
	"llm.max_tokens":                4096,
	"llm.timeout":                   "",
	"interview.ready_threshold":     80,
	"planning.hours_per_week":       40,
	"planning.seniority_multiplier": 1.5,
	"planning.template_dir":         "",
	"store.backend":                 "sqlite",
	"store.path":                    "",
	"store.postgres_dsn":            "",
	"store.chunk_size":              500,
	"store.top_k":                   10,
	"session.backend":               "file",
	"session.dir":                   "",
	"session.redis_addr":            "localhost:6379",
	"session.redis_password":        "",
	"session.redis_db":              0,
	"session.ttl":                   "168h",
	"server.port":                   8080,
}

// Load reads and parses a configuration from the given YAML file path.
// Environment variables (SPRINT_<SECTION>_<KEY>) override file values.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return decode(v)
}

// LoadDefault searches for a config in standard locations and loads the first
// one found. Search order: ./sprintfactory.yaml, ~/.sprintfactory/config.yaml.
// When none exists the built-in defaults (plus env overrides) are returned.
func LoadDefault() (*Config, error) {
	candidates := []string{"sprintfactory.yaml"}
	if dir, err := DataDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return decode(newViper())
}

// Default returns the built-in configuration without consulting files or env.
func Default() *Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	cfg, err := decode(v)
	if err != nil {
		// defaults are static; a decode failure is a programming error
		panic(err)
	}
	return cfg
}

// DataDir returns ~/.sprintfactory, the home of the default database, sessions and templates.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".sprintfactory"), nil
}

// TimeoutDuration parses LLM.Timeout. Empty means no client-side timeout.
func (l LLM) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(l.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(l.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parse llm.timeout %q: %w", l.Timeout, err)
	}
	return d, nil
}

// TTLDuration parses Session.TTL. Empty means sessions never expire.
func (s Session) TTLDuration() (time.Duration, error) {
	if strings.TrimSpace(s.TTL) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.TTL)
	if err != nil {
		return 0, fmt.Errorf("parse session.ttl %q: %w", s.TTL, err)
	}
	return d, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults resolves paths that depend on the user's home directory.
func applyDefaults(cfg *Config) {
	dir, err := DataDir()
	if err != nil {
		return
	}
	if cfg.Store.Backend == "sqlite" && cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(dir, "sprintfactory.db")
	}
	if cfg.Session.Backend == "file" && cfg.Session.Dir == "" {
		cfg.Session.Dir = filepath.Join(dir, "sessions")
	}
}
