package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsToMemoryWithFixtures(t *testing.T) {
	t.Setenv("STORAGE_MODE", "")
	t.Setenv("SEED_FIXTURES", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageMode)
	assert.True(t, cfg.Fixtures)
	assert.Equal(t, "VND", cfg.Currency)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.False(t, cfg.GatewayEnabled())
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoadMongoRequiresURI(t *testing.T) {
	t.Setenv("STORAGE_MODE", "mongo")
	t.Setenv("MONGO_URI", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Fixtures)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"STORAGE_MODE":     "postgres",
		"SMTP_PORT":        "abc",
		"LOCK_TTL":         "soon",
		"BILLING_CURRENCY": "EURO",
		"SEED_FIXTURES":    "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadSplitsBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
}
