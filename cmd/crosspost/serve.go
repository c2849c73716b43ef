package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/api/handlers"
	"github.com/maheshrc27/crosspost/internal/api/middleware"
	"github.com/maheshrc27/crosspost/internal/notify"
	"github.com/maheshrc27/crosspost/internal/queue"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	client := asynq.NewClient(redisConnOpt(cfg))
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("request failed", "path", c.Path(), "error", err)
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	accountService := service.NewAccountService(*cfg, d.accounts)
	platformService := service.NewPlatformService(*cfg, accountService, service.NewRedisRequestTokenStore(d.rdb))
	postService := service.NewPostService(d.posts, d.stager, queue.NewEnqueuer(client, cfg.Publishing))
	notificationService := service.NewNotificationService(d.notifications)

	authMiddleware := middleware.NewAuthMiddleware(*cfg).AuthMiddleware()

	platform := handlers.NewPlatformHandler(platformService, accountService, *cfg)
	app.Get("/auth/:platform", authMiddleware, platform.AddSocialAccount)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	api := app.Group("/api")
	api.Use(authMiddleware)

	post := handlers.NewPostHandler(postService)
	api.Post("/media", post.UploadMedia)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Delete("/posts/:id", post.RemovePost)

	api.Get("/accounts", platform.ListSocialAccounts)
	api.Delete("/accounts/:platform", platform.DeleteSocialAccount)

	notification := handlers.NewNotificationHandler(notificationService, notify.NewRedisPusher(d.rdb))
	api.Get("/notifications", notification.List)
	api.Get("/notifications/stream", notification.Stream)
	api.Post("/notifications/:id/read", notification.MarkRead)
	api.Delete("/notifications/:id", notification.Remove)
	api.Delete("/notifications", notification.Clear)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.HTTPAddr)
	}()
	slog.Info("server is running", "addr", cfg.HTTPAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	slog.Info("server shutdown complete")
	return nil
}
