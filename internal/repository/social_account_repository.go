package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/crosspost/internal/models"
)

// ErrAccountExists is returned by Create when the user already connected the platform.
var ErrAccountExists = errors.New("social account already connected")

type SocialAccountRepository interface {
	Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error)
	GetByUserAndPlatform(ctx context.Context, userID int64, platform models.Provider) (*models.SocialAccount, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	ListByTimeInterval(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error)
	UpdateToken(ctx context.Context, sa *models.SocialAccount) error
	Remove(ctx context.Context, userID int64, platform models.Provider) (bool, error)
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const socialAccountColumns = `id, user_id, platform, account_id, account_name,
	access_token, access_token_iv, access_token_secret, access_token_secret_iv,
	refresh_token, refresh_token_iv, token_expires_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSocialAccount(s scanner) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	var expiresAt sql.NullTime
	err := s.Scan(&sa.ID, &sa.UserID, &sa.Platform, &sa.AccountID, &sa.AccountName,
		&sa.AccessToken, &sa.AccessTokenIV, &sa.AccessTokenSecret, &sa.AccessTokenSecretIV,
		&sa.RefreshToken, &sa.RefreshTokenIV, &expiresAt, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		sa.TokenExpiresAt = expiresAt.Time
	}
	return &sa, nil
}

func (r *socialAccountRepository) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	insertQuery := `
		INSERT INTO social_accounts(
			user_id,
			platform,
			account_id,
			account_name,
			access_token,
			access_token_iv,
			access_token_secret,
			access_token_secret_iv,
			refresh_token,
			refresh_token_iv,
			token_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	args := []interface{}{
		sa.UserID,
		sa.Platform,
		sa.AccountID,
		sa.AccountName,
		sa.AccessToken,
		sa.AccessTokenIV,
		sa.AccessTokenSecret,
		sa.AccessTokenSecretIV,
		sa.RefreshToken,
		sa.RefreshTokenIV,
		nullTime(sa.TokenExpiresAt),
	}

	var id int64
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, insertQuery, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, insertQuery, args...).Scan(&id)
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrAccountExists
		}
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *socialAccountRepository) GetByUserAndPlatform(ctx context.Context, userID int64, platform models.Provider) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE user_id = $1 AND platform = $2`
	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, userID, platform))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

func (r *socialAccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE user_id = $1 ORDER BY platform`
	return r.list(ctx, query, userID)
}

// ListByTimeInterval returns accounts whose tokens expire inside the window or already expired.
func (r *socialAccountRepository) ListByTimeInterval(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts
		WHERE (token_expires_at BETWEEN $1 AND $2)
		OR (token_expires_at < $1)`
	return r.list(ctx, query, initialTime, finalTime)
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}

// UpdateToken replaces the stored credentials of an existing account. Empty
// refresh tokens keep the previous value.
func (r *socialAccountRepository) UpdateToken(ctx context.Context, sa *models.SocialAccount) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	updateTokenQuery := `
		UPDATE social_accounts
		SET
			access_token = $3,
			access_token_iv = $4,
			access_token_secret = $5,
			access_token_secret_iv = $6,
			refresh_token = COALESCE(NULLIF($7, ''), refresh_token),
			refresh_token_iv = COALESCE(NULLIF($8, ''), refresh_token_iv),
			token_expires_at = $9,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND platform = $2
	`
	result, err := tx.ExecContext(ctx, updateTokenQuery,
		sa.UserID, sa.Platform,
		sa.AccessToken, sa.AccessTokenIV,
		sa.AccessTokenSecret, sa.AccessTokenSecretIV,
		sa.RefreshToken, sa.RefreshTokenIV,
		nullTime(sa.TokenExpiresAt),
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; account may not exist", "user_id", sa.UserID, "platform", sa.Platform)
		return sql.ErrNoRows
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) Remove(ctx context.Context, userID int64, platform models.Provider) (bool, error) {
	query := `DELETE FROM social_accounts WHERE user_id = $1 AND platform = $2`
	result, err := r.db.ExecContext(ctx, query, userID, platform)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}
