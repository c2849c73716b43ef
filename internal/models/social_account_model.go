package models

import (
	"time"
)

// SocialAccount is a connected provider account together with its encrypted
// OAuth credentials. Token fields never leave the backend.
type SocialAccount struct {
	ID                  int64     `db:"id" json:"id"`
	UserID              int64     `db:"user_id" json:"user_id"`
	Platform            Provider  `db:"platform" json:"platform"`
	AccountID           string    `db:"account_id" json:"account_id"`
	AccountName         string    `db:"account_name" json:"account_name"`
	AccessToken         string    `db:"access_token" json:"-"`
	AccessTokenIV       string    `db:"access_token_iv" json:"-"`
	AccessTokenSecret   string    `db:"access_token_secret" json:"-"`
	AccessTokenSecretIV string    `db:"access_token_secret_iv" json:"-"`
	RefreshToken        string    `db:"refresh_token" json:"-"`
	RefreshTokenIV      string    `db:"refresh_token_iv" json:"-"`
	TokenExpiresAt      time.Time `db:"token_expires_at" json:"token_expires_at"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}
