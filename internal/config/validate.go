package config

import (
	"fmt"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	recognizedStoreBackends   = map[string]bool{"sqlite": true, "postgres": true, "memory": true}
	recognizedSessionBackends = map[string]bool{"file": true, "memory": true, "redis": true}
)

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.LLM.Model == "" {
		errs = append(errs, ValidationError{Field: "llm.model", Message: "is required"})
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errs = append(errs, ValidationError{Field: "llm.temperature", Message: "must be between 0 and 2"})
	}
	if _, err := cfg.LLM.TimeoutDuration(); err != nil {
		errs = append(errs, ValidationError{Field: "llm.timeout", Message: err.Error()})
	}

	if t := cfg.Interview.ReadyThreshold; t < 0 || t > 100 {
		errs = append(errs, ValidationError{Field: "interview.ready_threshold", Message: "must be between 0 and 100"})
	}

	if cfg.Planning.HoursPerWeek <= 0 {
		errs = append(errs, ValidationError{Field: "planning.hours_per_week", Message: "must be positive"})
	}
	if cfg.Planning.SeniorityMultiplier < 1 {
		errs = append(errs, ValidationError{Field: "planning.seniority_multiplier", Message: "must be at least 1"})
	}

	if !recognizedStoreBackends[cfg.Store.Backend] {
		errs = append(errs, ValidationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unrecognized backend %q", cfg.Store.Backend),
		})
	}
	if cfg.Store.Backend == "postgres" && cfg.Store.PostgresDSN == "" {
		errs = append(errs, ValidationError{Field: "store.postgres_dsn", Message: "is required for the postgres backend"})
	}
	if cfg.Store.ChunkSize <= 0 {
		errs = append(errs, ValidationError{Field: "store.chunk_size", Message: "must be positive"})
	}
	if cfg.Store.TopK <= 0 {
		errs = append(errs, ValidationError{Field: "store.top_k", Message: "must be positive"})
	}

	if !recognizedSessionBackends[cfg.Session.Backend] {
		errs = append(errs, ValidationError{
			Field:   "session.backend",
			Message: fmt.Sprintf("unrecognized backend %q", cfg.Session.Backend),
		})
	}
	if cfg.Session.Backend == "redis" && cfg.Session.RedisAddr == "" {
		errs = append(errs, ValidationError{Field: "session.redis_addr", Message: "is required for the redis backend"})
	}
	if cfg.Session.TTL != "" {
		if _, err := time.ParseDuration(cfg.Session.TTL); err != nil {
			errs = append(errs, ValidationError{Field: "session.ttl", Message: err.Error()})
		}
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, ValidationError{Field: "server.port", Message: "must be a valid TCP port"})
	}

	return errs
}
