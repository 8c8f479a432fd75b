package session

import (
	"context"
	"fmt"

	"github.com/lucasnoah/sprintfactory/internal/config"
)

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.Session) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir), nil
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		ttl, err := cfg.TTLDuration()
		if err != nil {
			return nil, err
		}
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      ttl,
		})
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}
