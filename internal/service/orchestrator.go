package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/notify"
	"github.com/maheshrc27/crosspost/internal/platform"
	"github.com/maheshrc27/crosspost/internal/storage"
)

const (
	cleanupTimeout = time.Minute
	recordTimeout  = 15 * time.Second
)

type CredentialStore interface {
	GetByUserAndPlatform(ctx context.Context, userID int64, platform models.Provider) (*models.SocialAccount, error)
}

type PostStore interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
}

// Orchestrator publishes one request to every selected provider.
type Orchestrator interface {
	Publish(ctx context.Context, req *models.PublishRequest) ([]models.PublishResult, error)
}

type orchestrator struct {
	accounts   CredentialStore
	posts      PostStore
	media      storage.Stager
	notifier   notify.Emitter
	publishers map[models.Provider]platform.Publisher
	secretKey  []byte
}

func NewOrchestrator(
	accounts CredentialStore,
	posts PostStore,
	media storage.Stager,
	notifier notify.Emitter,
	publishers []platform.Publisher,
	secretKey string) Orchestrator {
	byProvider := make(map[models.Provider]platform.Publisher, len(publishers))
	for _, p := range publishers {
		byProvider[p.Provider()] = p
	}
	return &orchestrator{
		accounts:   accounts,
		posts:      posts,
		media:      media,
		notifier:   notifier,
		publishers: byProvider,
		secretKey:  []byte(secretKey),
	}
}

// ValidateRequest checks req and returns its providers in request order with
// duplicates removed.
func ValidateRequest(req *models.PublishRequest) ([]models.Provider, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is nil", ErrValidation)
	}
	if req.UserID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if req.Text == "" && len(req.MediaKeys) == 0 {
		return nil, fmt.Errorf("%w: text or media is required", ErrValidation)
	}
	for _, key := range req.MediaKeys {
		if key == "" {
			return nil, fmt.Errorf("%w: empty media key", ErrValidation)
		}
	}
	if len(req.Providers) == 0 {
		return nil, fmt.Errorf("%w: at least one provider is required", ErrValidation)
	}

	seen := make(map[models.Provider]struct{}, len(req.Providers))
	providers := make([]models.Provider, 0, len(req.Providers))
	for _, p := range req.Providers {
		if _, err := models.ParseProvider(string(p)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		providers = append(providers, p)
	}
	return providers, nil
}

// Publish fans the request out to every provider concurrently and waits for
// all of them. A provider failure never affects its siblings; only an invalid
// request returns an error. Staged media is deleted once all attempts settle.
func (o *orchestrator) Publish(ctx context.Context, req *models.PublishRequest) ([]models.PublishResult, error) {
	providers, err := ValidateRequest(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	logger := slog.With("request_id", req.RequestID, "user_id", req.UserID)
	logger.Info("publishing post", "providers", providers, "media", len(req.MediaKeys))

	results := make([]models.PublishResult, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p models.Provider) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("publisher panicked", "provider", p, "panic", r)
					results[i] = o.record(ctx, req, p, nil, fmt.Errorf("internal error: %v", r))
				}
			}()
			results[i] = o.dispatch(ctx, req, p)
		}(i, p)
	}
	wg.Wait()

	o.cleanup(ctx, req)

	return results, nil
}

func (o *orchestrator) dispatch(ctx context.Context, req *models.PublishRequest, p models.Provider) models.PublishResult {
	d := models.NewDispatch(p)
	logger := slog.With("request_id", req.RequestID, "user_id", req.UserID, "provider", p)

	res, err := o.run(ctx, d, req)
	if err != nil {
		d.Fail(err)
		logger.Warn("publish failed", "state", d.State, "error", err)
		return o.record(ctx, req, p, nil, err)
	}

	if err := d.Advance(models.DispatchSucceeded); err != nil {
		logger.Error(err.Error())
	}
	logger.Info("publish succeeded", "post_id", res.PostID)
	return o.record(ctx, req, p, res, nil)
}

func (o *orchestrator) run(ctx context.Context, d *models.Dispatch, req *models.PublishRequest) (*platform.Result, error) {
	publisher, ok := o.publishers[d.Provider]
	if !ok {
		return nil, fmt.Errorf("%s is not configured", d.Provider)
	}

	account, err := o.accounts.GetByUserAndPlatform(ctx, req.UserID, d.Provider)
	if err != nil {
		return nil, fmt.Errorf("credential lookup: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	content := platform.Content{Text: req.Text}
	if len(req.MediaKeys) > 0 {
		if err := d.Advance(models.DispatchMediaUploading); err != nil {
			return nil, err
		}
		content.Media = make([]platform.Media, 0, len(req.MediaKeys))
		for _, key := range req.MediaKeys {
			data, err := o.media.Resolve(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("resolve media: %w", err)
			}
			m, err := platform.DetectMedia(key, data)
			if err != nil {
				return nil, err
			}
			m.URL = o.media.PublicURL(key)
			content.Media = append(content.Media, m)
		}
		if err := d.Advance(models.DispatchMediaReady); err != nil {
			return nil, err
		}
	}

	creds, err := decryptCredentials(account, o.secretKey)
	if err != nil {
		return nil, err
	}

	if err := d.Advance(models.DispatchPublishing); err != nil {
		return nil, err
	}
	return publisher.Publish(ctx, creds, content)
}

// record persists and announces the outcome. It outlives the job context so a
// timed out provider still gets its row. Failures here are logged and never
// change the result.
func (o *orchestrator) record(ctx context.Context, req *models.PublishRequest, p models.Provider, res *platform.Result, publishErr error) models.PublishResult {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	result := models.PublishResult{Provider: p}
	post := &models.Post{
		RequestID: req.RequestID,
		UserID:    req.UserID,
		Provider:  p,
		Text:      req.Text,
	}

	if publishErr != nil {
		result.Status = models.PublishFailed
		result.Error = publishErr.Error()
		post.Status = models.PostStatusFailed
		post.ErrorMessage = result.Error
	} else {
		result.Status = models.PublishSuccess
		result.Response = res.Response()
		post.Status = models.PostStatusSuccess
		post.ProviderPostID = res.PostID
	}

	if _, err := o.posts.Create(ctx, nil, post); err != nil {
		slog.Error("failed to store post", "request_id", req.RequestID, "provider", p, "error", err)
	}
	if err := o.notifier.PublishResult(ctx, req.UserID, req.RequestID, result); err != nil {
		slog.Error("failed to notify", "request_id", req.RequestID, "provider", p, "error", err)
	}
	return result
}

func (o *orchestrator) cleanup(ctx context.Context, req *models.PublishRequest) {
	if len(req.MediaKeys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	seen := make(map[string]struct{}, len(req.MediaKeys))
	for _, key := range req.MediaKeys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if err := o.media.Delete(ctx, key); err != nil {
			slog.Warn("failed to delete staged media", "request_id", req.RequestID, "key", key, "error", err)
		}
	}
}
