package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/platform"
	"github.com/maheshrc27/crosspost/internal/platform/instagram"
	"github.com/maheshrc27/crosspost/internal/platform/linkedin"
	"github.com/maheshrc27/crosspost/internal/platform/threads"
	"github.com/maheshrc27/crosspost/internal/platform/twitter"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/storage"
	"github.com/redis/go-redis/v9"
)

// deps holds the connections shared by the serve and worker commands.
type deps struct {
	db     *sql.DB
	rdb    *redis.Client
	stager storage.Stager

	posts         repository.PostRepository
	accounts      repository.SocialAccountRepository
	notifications repository.NotificationRepository
}

func connect(ctx context.Context, cfg *config.Config) (*deps, error) {
	db, err := repository.Open(cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	if err := rdb.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	s3Client, err := storage.NewR2Client(ctx, cfg.R2)
	if err != nil {
		db.Close()
		rdb.Close()
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &deps{
		db:            db,
		rdb:           rdb,
		stager:        storage.NewStager(s3Client, cfg.R2.BucketName, cfg.R2.PublicURL),
		posts:         repository.NewPostRepository(db),
		accounts:      repository.NewSocialAccountRepository(db),
		notifications: repository.NewNotificationRepository(db),
	}, nil
}

func (d *deps) Close() {
	if err := d.rdb.Close(); err != nil {
		slog.Warn("failed to close redis", "error", err)
	}
	if err := d.db.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

func redisConnOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisURI}
}

// publishers builds one client per provider. Instagram and Threads share the
// Graph API budget so they share a limiter.
func publishers(cfg *config.Config) []platform.Publisher {
	p := cfg.Publishing
	poll := platform.PollConfig{
		Interval:    platform.DefaultPollConfig().Interval,
		MaxAttempts: p.PollMaxAttempts,
		Timeout:     p.PollTimeout,
	}
	graphPoll := poll
	graphPoll.Interval = p.InstagramPollInterval
	graphLimiter := platform.NewLimiter(p.GraphRateLimit)

	return []platform.Publisher{
		twitter.New(twitter.Config{
			ConsumerKey:    cfg.Twitter.ConsumerKey,
			ConsumerSecret: cfg.Twitter.ConsumerSecret,
			ChunkSize:      p.ChunkSize,
			Poll:           poll,
		}),
		linkedin.New(linkedin.Config{APIVersion: cfg.LinkedIn.APIVersion}),
		instagram.New(instagram.Config{Poll: graphPoll, Limiter: graphLimiter}),
		threads.New(threads.Config{Poll: graphPoll, Limiter: graphLimiter}),
	}
}
