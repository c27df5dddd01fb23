package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/ec-order-engine/internal/config"
	"github.com/example/ec-order-engine/internal/infrastructure/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(redisURL string) *config.AppConfig {
	return &config.AppConfig{
		Environment: "development",
		Currency:    "INR",
		Database:    config.DatabaseConfig{Driver: "memory"},
		Redis:       config.RedisConfig{URL: redisURL, DedupeTTL: time.Hour},
		Gateway: config.GatewayConfig{
			BaseURL:       "http://gateway.invalid",
			KeyID:         "rzp_test_key",
			KeySecret:     "key_secret",
			WebhookSecret: "whsec",
			Timeout:       time.Second,
		},
		Sweep: config.SweepConfig{PendingTTL: 30 * time.Minute, Interval: time.Minute},
	}
}

func TestBuild_MemoryWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := Build(context.Background(), memoryConfig("redis://"+mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, &store.MemoryStore{}, a.Store)
	assert.NotNil(t, a.Orders)
	assert.NotNil(t, a.Payments)
	assert.NotNil(t, a.Sweeper)
	assert.Equal(t, "rzp_test_key", a.Gateway.KeyID())
	assert.Len(t, a.closers, 1, "redis is the only open connection")
}

func TestBuild_UnreachableRedisDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()
	mr.Close()

	a, err := Build(context.Background(), memoryConfig(url))
	require.NoError(t, err)

	assert.Empty(t, a.closers)
	assert.NoError(t, a.Close())
}

func TestBuild_BadRedisURL(t *testing.T) {
	_, err := Build(context.Background(), memoryConfig("mysql://nope"))

	assert.Error(t, err)
}
