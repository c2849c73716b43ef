package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
)

const (
	refreshWindow    = 30 * time.Minute
	concurrencyLimit = 10
)

// TokenRefreshJob renews provider tokens that are about to expire.
type TokenRefreshJob struct {
	accounts  service.AccountService
	platforms service.PlatformService
}

func NewTokenRefreshJob(accounts service.AccountService, platforms service.PlatformService) *TokenRefreshJob {
	return &TokenRefreshJob{
		accounts:  accounts,
		platforms: platforms,
	}
}

// RefreshTokens is the cron entry point.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	c.Run(ctx)
}

// Run refreshes every account expiring within the window and returns how many
// were renewed.
func (c *TokenRefreshJob) Run(ctx context.Context) int {
	accounts, err := c.accounts.Expiring(ctx, refreshWindow)
	if err != nil {
		slog.Info(err.Error())
		return 0
	}

	var (
		wg        sync.WaitGroup
		refreshed atomic.Int32
	)
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			err := c.platforms.RefreshAccount(ctx, acc)
			switch {
			case errors.Is(err, service.ErrRefreshNotSupported):
				slog.Debug("token refresh not supported", "platform", acc.Platform, "user_id", acc.UserID)
			case err != nil:
				slog.Warn("unable to refresh token", "platform", acc.Platform, "user_id", acc.UserID, "error", err)
			default:
				refreshed.Add(1)
			}
		}(acc)
	}
	wg.Wait()

	if n := refreshed.Load(); n > 0 {
		slog.Info("tokens refreshed", "count", n)
	}
	return int(refreshed.Load())
}
