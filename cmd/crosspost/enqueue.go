package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/queue"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/spf13/cobra"
)

var (
	enqueueUser      int64
	enqueueText      string
	enqueueProviders []string
	enqueueMedia     []string
	enqueueDelay     time.Duration
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Enqueue a publish job without going through the API",
	Example: `  crosspost enqueue --user 1 --text "hello" --provider twitter --provider linkedin
  crosspost enqueue --user 1 --media media/abc.png --provider instagram --delay 1h`,
	RunE: runEnqueue,
}

func init() {
	enqueueCmd.Flags().Int64Var(&enqueueUser, "user", 0, "user id owning the connected accounts")
	enqueueCmd.Flags().StringVar(&enqueueText, "text", "", "post text")
	enqueueCmd.Flags().StringSliceVar(&enqueueProviders, "provider", nil, "provider to publish to (repeatable)")
	enqueueCmd.Flags().StringSliceVar(&enqueueMedia, "media", nil, "staged media key (repeatable)")
	enqueueCmd.Flags().DurationVar(&enqueueDelay, "delay", 0, "delay before publishing")
	_ = enqueueCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	req := &models.PublishRequest{
		RequestID: uuid.NewString(),
		UserID:    enqueueUser,
		Text:      enqueueText,
		MediaKeys: enqueueMedia,
	}
	for _, name := range enqueueProviders {
		p, err := models.ParseProvider(name)
		if err != nil {
			return err
		}
		req.Providers = append(req.Providers, p)
	}

	providers, err := service.ValidateRequest(req)
	if err != nil {
		return err
	}
	req.Providers = providers

	client := asynq.NewClient(redisConnOpt(cfg))
	defer client.Close()

	if err := queue.NewEnqueuer(client, cfg.Publishing).EnqueuePublish(context.Background(), req, enqueueDelay); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), req.RequestID)
	return nil
}
