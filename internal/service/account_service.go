package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/platform"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/pkg/utils"
)

// AccountToken is a freshly obtained, still plaintext credential set.
type AccountToken struct {
	AccountID    string
	AccountName  string
	AccessToken  string
	TokenSecret  string
	RefreshToken string
	ExpiresAt    time.Time
}

// AccountService owns the encrypted credentials of connected accounts. Connect,
// Refresh and Disconnect are separate operations: connecting an already
// connected platform is an error, refreshing a missing one too.
type AccountService interface {
	Connect(ctx context.Context, userID int64, p models.Provider, tok AccountToken) (int64, error)
	Refresh(ctx context.Context, userID int64, p models.Provider, tok AccountToken) error
	Disconnect(ctx context.Context, userID int64, p models.Provider) error
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Credentials(ctx context.Context, userID int64, p models.Provider) (platform.Credentials, error)
	RefreshToken(sa *models.SocialAccount) (string, error)
	Expiring(ctx context.Context, within time.Duration) ([]*models.SocialAccount, error)
}

type accountService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewAccountService(cfg config.Config, sa repository.SocialAccountRepository) AccountService {
	return &accountService{
		cfg: cfg,
		sa:  sa,
	}
}

func (s *accountService) seal(userID int64, p models.Provider, tok AccountToken) (*models.SocialAccount, error) {
	key := []byte(s.cfg.SecretKey)
	sa := &models.SocialAccount{
		UserID:         userID,
		Platform:       p,
		AccountID:      tok.AccountID,
		AccountName:    tok.AccountName,
		TokenExpiresAt: tok.ExpiresAt,
	}

	var err error
	if sa.AccessToken, sa.AccessTokenIV, err = utils.Encrypt([]byte(tok.AccessToken), key); err != nil {
		return nil, err
	}
	if tok.TokenSecret != "" {
		if sa.AccessTokenSecret, sa.AccessTokenSecretIV, err = utils.Encrypt([]byte(tok.TokenSecret), key); err != nil {
			return nil, err
		}
	}
	if tok.RefreshToken != "" {
		if sa.RefreshToken, sa.RefreshTokenIV, err = utils.Encrypt([]byte(tok.RefreshToken), key); err != nil {
			return nil, err
		}
	}
	return sa, nil
}

func (s *accountService) Connect(ctx context.Context, userID int64, p models.Provider, tok AccountToken) (int64, error) {
	if userID == 0 {
		err := errors.New("User not found")
		slog.Info(err.Error())
		return 0, err
	}
	if tok.AccessToken == "" || tok.AccountID == "" {
		return 0, fmt.Errorf("%s: access token and account id are required", p)
	}

	sa, err := s.seal(userID, p, tok)
	if err != nil {
		return 0, err
	}

	id, err := s.sa.Create(ctx, nil, sa)
	if err != nil {
		return 0, fmt.Errorf("connect %s: %w", p, err)
	}
	slog.Info("account connected", "user_id", userID, "platform", p, "account_id", tok.AccountID)
	return id, nil
}

func (s *accountService) Refresh(ctx context.Context, userID int64, p models.Provider, tok AccountToken) error {
	if tok.AccessToken == "" {
		return fmt.Errorf("%s: access token is required", p)
	}

	existing, err := s.sa.GetByUserAndPlatform(ctx, userID, p)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrAccountNotFound
	}
	if tok.AccountID == "" {
		tok.AccountID = existing.AccountID
	}

	sa, err := s.seal(userID, p, tok)
	if err != nil {
		return err
	}
	if err := s.sa.UpdateToken(ctx, sa); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("refresh %s: %w", p, err)
	}
	return nil
}

func (s *accountService) Disconnect(ctx context.Context, userID int64, p models.Provider) error {
	removed, err := s.sa.Remove(ctx, userID, p)
	if err != nil {
		return fmt.Errorf("Error removing account Info: %w", err)
	}
	if !removed {
		return ErrAccountNotFound
	}
	slog.Info("account disconnected", "user_id", userID, "platform", p)
	return nil
}

func (s *accountService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	if userID == 0 {
		err := errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	accounts, err := s.sa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting social accounts: %w", err)
	}
	return accounts, nil
}

func (s *accountService) Credentials(ctx context.Context, userID int64, p models.Provider) (platform.Credentials, error) {
	sa, err := s.sa.GetByUserAndPlatform(ctx, userID, p)
	if err != nil {
		return platform.Credentials{}, err
	}
	if sa == nil {
		return platform.Credentials{}, ErrAccountNotFound
	}
	return decryptCredentials(sa, []byte(s.cfg.SecretKey))
}

// RefreshToken decrypts the stored refresh token, falling back to the access
// token for providers that refresh with the long-lived token itself.
func (s *accountService) RefreshToken(sa *models.SocialAccount) (string, error) {
	if sa.RefreshToken != "" {
		return utils.Decrypt(sa.RefreshToken, sa.RefreshTokenIV, []byte(s.cfg.SecretKey))
	}
	return utils.Decrypt(sa.AccessToken, sa.AccessTokenIV, []byte(s.cfg.SecretKey))
}

func (s *accountService) Expiring(ctx context.Context, within time.Duration) ([]*models.SocialAccount, error) {
	now := time.Now()
	return s.sa.ListByTimeInterval(ctx, now, now.Add(within))
}
