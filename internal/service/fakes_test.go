package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/platform"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/storage"
	"github.com/maheshrc27/crosspost/pkg/utils"
	"github.com/stretchr/testify/require"
)

var testSecret = strings.Repeat("k", 32)

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[models.Provider]*models.SocialAccount
	calls    int
	created  []*models.SocialAccount
	updated  []*models.SocialAccount
	removed  []models.Provider
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: map[models.Provider]*models.SocialAccount{}}
}

func (f *fakeAccounts) add(t *testing.T, p models.Provider, accountID, token, secret string) {
	t.Helper()
	ct, iv, err := utils.Encrypt([]byte(token), []byte(testSecret))
	require.NoError(t, err)
	sa := &models.SocialAccount{UserID: 1, Platform: p, AccountID: accountID, AccessToken: ct, AccessTokenIV: iv}
	if secret != "" {
		sa.AccessTokenSecret, sa.AccessTokenSecretIV, err = utils.Encrypt([]byte(secret), []byte(testSecret))
		require.NoError(t, err)
	}
	f.accounts[p] = sa
}

func (f *fakeAccounts) GetByUserAndPlatform(_ context.Context, userID int64, p models.Provider) (*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	sa, ok := f.accounts[p]
	if !ok || sa.UserID != userID {
		return nil, nil
	}
	return sa, nil
}

func (f *fakeAccounts) Create(_ context.Context, _ *sql.Tx, sa *models.SocialAccount) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[sa.Platform]; ok {
		return 0, repository.ErrAccountExists
	}
	f.created = append(f.created, sa)
	f.accounts[sa.Platform] = sa
	return int64(len(f.created)), nil
}

func (f *fakeAccounts) UpdateToken(_ context.Context, sa *models.SocialAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[sa.Platform]; !ok {
		return sql.ErrNoRows
	}
	f.updated = append(f.updated, sa)
	f.accounts[sa.Platform] = sa
	return nil
}

func (f *fakeAccounts) Remove(_ context.Context, userID int64, p models.Provider) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[p]; !ok {
		return false, nil
	}
	delete(f.accounts, p)
	f.removed = append(f.removed, p)
	return true, nil
}

func (f *fakeAccounts) ListByUserID(_ context.Context, userID int64) ([]*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SocialAccount
	for _, sa := range f.accounts {
		if sa.UserID == userID {
			out = append(out, sa)
		}
	}
	return out, nil
}

type fakePosts struct {
	mu    sync.Mutex
	posts []*models.Post
}

func (f *fakePosts) Create(ctx context.Context, _ *sql.Tx, p *models.Post) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, p)
	return int64(len(f.posts)), nil
}

func (f *fakePosts) byProvider() map[models.Provider]*models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[models.Provider]*models.Post{}
	for _, p := range f.posts {
		out[p.Provider] = p
	}
	return out
}

type fakeStager struct {
	mu       sync.Mutex
	objects  map[string][]byte
	deletes  map[string]int
	resolves int
	reject   func(data []byte) error
}

func newFakeStager(objects map[string][]byte) *fakeStager {
	return &fakeStager{objects: objects, deletes: map[string]int{}}
}

func (f *fakeStager) Stage(_ context.Context, userID int64, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject != nil {
		if err := f.reject(data); err != nil {
			return "", err
		}
	}
	key := fmt.Sprintf("%s%d", storage.OwnerPrefix(userID), len(f.objects)+1)
	f.objects[key] = data
	return key, nil
}

func (f *fakeStager) Resolve(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return append([]byte{}, data...), nil
}

func (f *fakeStager) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes[key]++
	delete(f.objects, key)
	return nil
}

func (f *fakeStager) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

type fakeEmitter struct {
	mu      sync.Mutex
	results []models.PublishResult
}

func (f *fakeEmitter) PublishResult(ctx context.Context, _ int64, _ string, r models.PublishResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	return nil
}

type fakePublisher struct {
	provider models.Provider
	mu       sync.Mutex
	calls    []platform.Content
	creds    []platform.Credentials
	publish  func(content platform.Content) (*platform.Result, error)
}

func (f *fakePublisher) Provider() models.Provider { return f.provider }

func (f *fakePublisher) Publish(_ context.Context, creds platform.Credentials, content platform.Content) (*platform.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, content)
	f.creds = append(f.creds, creds)
	f.mu.Unlock()
	if f.publish != nil {
		return f.publish(content)
	}
	return &platform.Result{PostID: string(f.provider) + "-1"}, nil
}

func (f *fakeAccounts) ListByTimeInterval(_ context.Context, from, to time.Time) ([]*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SocialAccount
	for _, sa := range f.accounts {
		if !sa.TokenExpiresAt.IsZero() && sa.TokenExpiresAt.Before(to) {
			out = append(out, sa)
		}
	}
	return out, nil
}
