package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	job "github.com/maheshrc27/crosspost/internal/jobs"
	"github.com/maheshrc27/crosspost/internal/notify"
	"github.com/maheshrc27/crosspost/internal/queue"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the publish worker and the token refresh job",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	emitter := notify.NewEmitter(d.notifications, notify.NewRedisPusher(d.rdb))
	orchestrator := service.NewOrchestrator(d.accounts, d.posts, d.stager, emitter, publishers(cfg), cfg.SecretKey)

	accountService := service.NewAccountService(*cfg, d.accounts)
	platformService := service.NewPlatformService(*cfg, accountService, service.NewRedisRequestTokenStore(d.rdb))
	refreshTokenJob := job.NewTokenRefreshJob(accountService, platformService)

	c := cron.New()
	if err := c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens); err != nil {
		return fmt.Errorf("schedule token refresh: %w", err)
	}
	c.Start()
	defer c.Stop()

	server := asynq.NewServer(redisConnOpt(cfg), asynq.Config{
		Concurrency: cfg.Publishing.WorkerConcurrency,
	})

	slog.Info("starting the asynq server", "concurrency", cfg.Publishing.WorkerConcurrency)
	if err := server.Start(queue.NewQueue(orchestrator).Mux()); err != nil {
		return fmt.Errorf("could not start asynq server: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down worker", "signal", sig)
	server.Shutdown()
	return nil
}
