package session

import (
	"context"
	"fmt"
)

// Config selects where admin sessions live. Redis lets several storefront
// instances share sign-ins; memory suits a single instance.
type Config struct {
	Provider    string
	RedisURL    string
	MaxSessions int
}

func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Provider {
	case "", "memory":
		store, err := NewMemoryStore(cfg.MaxSessions)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory session store: %w", err)
		}
		return store, nil
	case "redis":
		return NewRedisStore(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unsupported admin session store: %s", cfg.Provider)
	}
}
