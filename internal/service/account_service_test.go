package service

import (
	"context"
	"testing"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountService(accounts *fakeAccounts) AccountService {
	return NewAccountService(config.Config{SecretKey: testSecret}, accounts)
}

func TestAccountService_ConnectRefreshDisconnect(t *testing.T) {
	accounts := newFakeAccounts()
	s := newAccountService(accounts)
	ctx := context.Background()

	_, err := s.Connect(ctx, 1, models.ProviderTwitter, AccountToken{AccountID: "tw-1", AccountName: "@me", AccessToken: "at", TokenSecret: "ts"})
	require.NoError(t, err)

	stored := accounts.accounts[models.ProviderTwitter]
	assert.NotEqual(t, "at", stored.AccessToken)
	assert.NotEmpty(t, stored.AccessTokenIV)
	assert.NotEmpty(t, stored.AccessTokenSecret)
	assert.Empty(t, stored.RefreshToken)

	creds, err := s.Credentials(ctx, 1, models.ProviderTwitter)
	require.NoError(t, err)
	assert.Equal(t, "tw-1", creds.AccountID)
	assert.Equal(t, "at", creds.AccessToken)
	assert.Equal(t, "ts", creds.TokenSecret)

	_, err = s.Connect(ctx, 1, models.ProviderTwitter, AccountToken{AccountID: "tw-1", AccessToken: "again"})
	assert.ErrorIs(t, err, repository.ErrAccountExists)

	require.NoError(t, s.Refresh(ctx, 1, models.ProviderTwitter, AccountToken{AccessToken: "at2", TokenSecret: "ts2"}))
	creds, err = s.Credentials(ctx, 1, models.ProviderTwitter)
	require.NoError(t, err)
	assert.Equal(t, "at2", creds.AccessToken)
	assert.Equal(t, "tw-1", creds.AccountID)

	require.NoError(t, s.Disconnect(ctx, 1, models.ProviderTwitter))
	assert.ErrorIs(t, s.Disconnect(ctx, 1, models.ProviderTwitter), ErrAccountNotFound)

	_, err = s.Credentials(ctx, 1, models.ProviderTwitter)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountService_RefreshMissingAccount(t *testing.T) {
	s := newAccountService(newFakeAccounts())
	err := s.Refresh(context.Background(), 1, models.ProviderInstagram, AccountToken{AccessToken: "x"})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountService_RefreshToken(t *testing.T) {
	accounts := newFakeAccounts()
	s := newAccountService(accounts)
	ctx := context.Background()

	_, err := s.Connect(ctx, 1, models.ProviderLinkedIn, AccountToken{AccountID: "li", AccessToken: "access", RefreshToken: "refresh"})
	require.NoError(t, err)
	_, err = s.Connect(ctx, 1, models.ProviderInstagram, AccountToken{AccountID: "ig", AccessToken: "long-lived"})
	require.NoError(t, err)

	rt, err := s.RefreshToken(accounts.accounts[models.ProviderLinkedIn])
	require.NoError(t, err)
	assert.Equal(t, "refresh", rt)

	rt, err = s.RefreshToken(accounts.accounts[models.ProviderInstagram])
	require.NoError(t, err)
	assert.Equal(t, "long-lived", rt)
}

func TestAccountService_Expiring(t *testing.T) {
	accounts := newFakeAccounts()
	s := newAccountService(accounts)
	ctx := context.Background()

	_, err := s.Connect(ctx, 1, models.ProviderThreads, AccountToken{AccountID: "th", AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.Connect(ctx, 1, models.ProviderInstagram, AccountToken{AccountID: "ig", AccessToken: "a", ExpiresAt: time.Now().Add(30 * 24 * time.Hour)})
	require.NoError(t, err)
	_, err = s.Connect(ctx, 1, models.ProviderTwitter, AccountToken{AccountID: "tw", AccessToken: "a", TokenSecret: "s"})
	require.NoError(t, err)

	expiring, err := s.Expiring(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, models.ProviderThreads, expiring[0].Platform)
}
