package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, PersistenceMemory, cfg.Cart.Persistence)
	assert.False(t, cfg.Cart.Durable())
	assert.Equal(t, "https://wa.me", cfg.Handoff.BaseURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Handoff.Delay)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, time.Second, cfg.Kafka.PollInterval)
	assert.Equal(t, 100, cfg.Kafka.BatchSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CART_PERSISTENCE", "durable")
	t.Setenv("HANDOFF_DELAY", "250ms")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Cart.Durable())
	assert.Equal(t, 250*time.Millisecond, cfg.Handoff.Delay)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoad_InvalidPersistence(t *testing.T) {
	t.Setenv("CART_PERSISTENCE", "browser")

	_, err := Load()
	require.ErrorContains(t, err, "CART_PERSISTENCE")
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("HANDOFF_DELAY", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.Handoff.Delay)
}

func TestLoad_KafkaPollIntervalMustBePositive(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092")
	t.Setenv("KAFKA_POLL_INTERVAL", "0s")

	_, err := Load()
	require.ErrorContains(t, err, "KAFKA_POLL_INTERVAL")
}
