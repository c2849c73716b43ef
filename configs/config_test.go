package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 1024*1024, cfg.Publishing.ChunkSize)
		assert.Equal(t, 60, cfg.Publishing.PollMaxAttempts)
		assert.Equal(t, 10*time.Minute, cfg.Publishing.PollTimeout)
		assert.Equal(t, 2*time.Second, cfg.Publishing.InstagramPollInterval)
		assert.Equal(t, "202401", cfg.LinkedIn.APIVersion)
		assert.Equal(t, ":3000", cfg.HTTPAddr)
	})

	t.Run("custom values", func(t *testing.T) {
		t.Setenv("UPLOAD_CHUNK_SIZE", "2048")
		t.Setenv("POLL_TIMEOUT", "30s")
		t.Setenv("TWITTER_CONSUMER_KEY", "ck")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 2048, cfg.Publishing.ChunkSize)
		assert.Equal(t, 30*time.Second, cfg.Publishing.PollTimeout)
		assert.Equal(t, "ck", cfg.Twitter.ConsumerKey)
	})

	t.Run("invalid duration", func(t *testing.T) {
		t.Setenv("POLL_TIMEOUT", "soon")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "POLL_TIMEOUT")
	})

	t.Run("invalid integer", func(t *testing.T) {
		t.Setenv("POLL_MAX_ATTEMPTS", "many")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "POLL_MAX_ATTEMPTS")
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			PostgresURI: "postgres://localhost/crosspost",
			RedisURI:    "localhost:6379",
			SecretKey:   strings.Repeat("k", 32),
			Publishing:  Publishing{ChunkSize: 1024, PollMaxAttempts: 3},
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.PostgresURI = ""
	assert.ErrorContains(t, cfg.Validate(), "POSTGRES_URI")

	cfg = valid()
	cfg.SecretKey = "short"
	assert.ErrorContains(t, cfg.Validate(), "SECRET_KEY")

	cfg = valid()
	cfg.Publishing.PollMaxAttempts = 0
	assert.ErrorContains(t, cfg.Validate(), "POLL_MAX_ATTEMPTS")
}
