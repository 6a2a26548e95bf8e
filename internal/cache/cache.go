package cache

import (
	"context"
	"time"

	"github.com/cristal-orion/superagente/internal/domain"
)

type ProjectionCache interface {
	Get(ctx context.Context, key string) (*domain.CalcResponse, bool, error)
	Set(ctx context.Context, key string, value *domain.CalcResponse, ttl time.Duration) error
}

type NoopProjectionCache struct{}

func (NoopProjectionCache) Get(_ context.Context, _ string) (*domain.CalcResponse, bool, error) {
	return nil, false, nil
}

func (NoopProjectionCache) Set(_ context.Context, _ string, _ *domain.CalcResponse, _ time.Duration) error {
	return nil
}
