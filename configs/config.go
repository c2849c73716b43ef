package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	// PublicURL is the base URL the bucket is publicly served from. Instagram and
	// Threads fetch media from here, they never receive raw bytes.
	PublicURL string
}

type Twitter struct {
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
}

type LinkedIn struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIVersion   string
}

type Graph struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Publishing holds the knobs of the publish pipeline itself.
type Publishing struct {
	ChunkSize             int
	PollMaxAttempts       int
	PollTimeout           time.Duration
	InstagramPollInterval time.Duration
	GraphRateLimit        float64
	JobMaxRetry           int
	JobTimeout            time.Duration
	WorkerConcurrency     int
}

type Config struct {
	Twitter     Twitter
	LinkedIn    LinkedIn
	Instagram   Graph
	Threads     Graph
	PostgresURI string
	RedisURI    string
	FrontendURL string
	HTTPAddr    string
	LogLevel    string
	CookieName  string
	R2          R2
	SecretKey   string
	Publishing  Publishing
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Twitter: Twitter{
			ConsumerKey:    getEnv("TWITTER_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("TWITTER_CONSUMER_SECRET", ""),
			CallbackURL:    getEnv("TWITTER_CALLBACK_URL", "http://localhost:3000/auth/twitter/callback"),
		},
		LinkedIn: LinkedIn{
			ClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("LINKEDIN_REDIRECT_URI", "http://localhost:3000/auth/linkedin/callback"),
			APIVersion:   getEnv("LINKEDIN_API_VERSION", "202401"),
		},
		Instagram: Graph{
			ClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
			ClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("INSTAGRAM_REDIRECT_URI", ""),
		},
		Threads: Graph{
			ClientID:     getEnv("THREADS_CLIENT_ID", ""),
			ClientSecret: getEnv("THREADS_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("THREADS_REDIRECT_URI", ""),
		},
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", "localhost:6379"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":3000"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CookieName:  getEnv("COOKIE_NAME", "crosspost_session"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		SecretKey: getEnv("SECRET_KEY", ""),
	}

	var err error
	p := &cfg.Publishing

	if p.ChunkSize, err = getInt("UPLOAD_CHUNK_SIZE", 1024*1024); err != nil {
		return nil, err
	}
	if p.PollMaxAttempts, err = getInt("POLL_MAX_ATTEMPTS", 60); err != nil {
		return nil, err
	}
	if p.PollTimeout, err = getDuration("POLL_TIMEOUT", "10m"); err != nil {
		return nil, err
	}
	if p.InstagramPollInterval, err = getDuration("INSTAGRAM_POLL_INTERVAL", "2s"); err != nil {
		return nil, err
	}
	if p.JobMaxRetry, err = getInt("JOB_MAX_RETRY", 3); err != nil {
		return nil, err
	}
	if p.JobTimeout, err = getDuration("JOB_TIMEOUT", "30m"); err != nil {
		return nil, err
	}
	if p.WorkerConcurrency, err = getInt("WORKER_CONCURRENCY", 10); err != nil {
		return nil, err
	}
	p.GraphRateLimit, err = strconv.ParseFloat(getEnv("GRAPH_RATE_LIMIT", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GRAPH_RATE_LIMIT: %w", err)
	}

	return cfg, nil
}

// Validate checks what both the API server and the worker need.
func (c *Config) Validate() error {
	if c.PostgresURI == "" {
		return errors.New("POSTGRES_URI is required")
	}
	if c.RedisURI == "" {
		return errors.New("REDIS_URI is required")
	}
	if len(c.SecretKey) != 32 {
		return errors.New("SECRET_KEY must be 32 bytes")
	}
	if c.Publishing.ChunkSize <= 0 {
		return errors.New("UPLOAD_CHUNK_SIZE must be positive")
	}
	if c.Publishing.PollMaxAttempts <= 0 {
		return errors.New("POLL_MAX_ATTEMPTS must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
