package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/storage"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

const (
	maxUploadFiles  = 20
	defaultPageSize = 50
)

// PublishEnqueuer hands a validated request to the background worker.
type PublishEnqueuer interface {
	EnqueuePublish(ctx context.Context, req *models.PublishRequest, delay time.Duration) error
}

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (*transfer.PostCreated, error)
	StageMedia(ctx context.Context, userID int64, files []*multipart.FileHeader) ([]string, error)
	List(ctx context.Context, userID int64, limit int) ([]*models.Post, error)
	RequestStatus(ctx context.Context, userID int64, requestID string) ([]*models.Post, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	pr    repository.PostRepository
	media storage.Stager
	queue PublishEnqueuer
	now   func() time.Time
}

func NewPostService(pr repository.PostRepository, media storage.Stager, queue PublishEnqueuer) PostService {
	return &postService{
		pr:    pr,
		media: media,
		queue: queue,
		now:   time.Now,
	}
}

func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (*transfer.PostCreated, error) {
	if pc == nil {
		err := fmt.Errorf("%w: post creation data is nil", ErrValidation)
		slog.Info(err.Error())
		return nil, err
	}

	req := &models.PublishRequest{
		RequestID: uuid.NewString(),
		UserID:    userID,
		Text:      pc.Text,
		MediaKeys: pc.MediaKeys,
	}
	for _, name := range pc.Providers {
		p, err := models.ParseProvider(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		req.Providers = append(req.Providers, p)
	}

	providers, err := ValidateRequest(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Providers = providers

	for _, key := range req.MediaKeys {
		if !storage.OwnedBy(key, userID) {
			err := fmt.Errorf("%w: unknown media key %q", ErrValidation, key)
			slog.Info(err.Error())
			return nil, err
		}
	}

	scheduledAt := s.now()
	if pc.ScheduledAt != nil {
		scheduledAt = *pc.ScheduledAt
		req.ScheduledAt = pc.ScheduledAt
	}

	delay := scheduledAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	if err := s.queue.EnqueuePublish(ctx, req, delay); err != nil {
		return nil, fmt.Errorf("failed to enqueue post: %w", err)
	}

	slog.Info("post enqueued", "request_id", req.RequestID, "user_id", userID, "providers", len(providers), "delay", delay)
	return &transfer.PostCreated{RequestID: req.RequestID, ScheduledAt: scheduledAt}, nil
}

// StageMedia stores uploaded files and returns their keys in upload order. On
// failure the files staged so far are removed again.
func (s *postService) StageMedia(ctx context.Context, userID int64, files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		err := fmt.Errorf("%w: no files provided", ErrValidation)
		slog.Info(err.Error())
		return nil, err
	}
	if len(files) > maxUploadFiles {
		return nil, fmt.Errorf("%w: at most %d files per upload", ErrValidation, maxUploadFiles)
	}

	keys := make([]string, 0, len(files))
	for _, file := range files {
		key, err := s.stageFile(ctx, userID, file)
		if err != nil {
			s.discard(keys)
			if errors.Is(err, storage.ErrUnsupportedMedia) {
				return nil, fmt.Errorf("%w: %s: %v", ErrValidation, file.Filename, err)
			}
			return nil, fmt.Errorf("error processing files: %w", err)
		}
		keys = append(keys, key)
	}

	slog.Info("media staged", "user_id", userID, "count", len(keys))
	return keys, nil
}

func (s *postService) stageFile(ctx context.Context, userID int64, file *multipart.FileHeader) (string, error) {
	fileContent, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("error opening file: %w", err)
	}
	defer fileContent.Close()

	fileBytes, err := io.ReadAll(fileContent)
	if err != nil {
		return "", fmt.Errorf("error reading file content: %w", err)
	}

	return s.media.Stage(ctx, userID, fileBytes)
}

func (s *postService) discard(keys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	for _, key := range keys {
		if err := s.media.Delete(ctx, key); err != nil {
			slog.Info("failed to delete staged media", "key", key, "error", err)
		}
	}
}

func (s *postService) List(ctx context.Context, userID int64, limit int) ([]*models.Post, error) {
	if userID == 0 {
		err := errors.New("User is not valid")
		slog.Info(err.Error())
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = defaultPageSize
	}

	posts, err := s.pr.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("Error getting posts: %w", err)
	}
	return posts, nil
}

func (s *postService) RequestStatus(ctx context.Context, userID int64, requestID string) ([]*models.Post, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidation)
	}
	return s.pr.GetByRequestID(ctx, userID, requestID)
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	if userID == 0 {
		err := errors.New("User is not valid")
		slog.Info(err.Error())
		return err
	}
	if postID == 0 {
		err := fmt.Errorf("%w: post_id is not valid", ErrValidation)
		slog.Info(err.Error())
		return err
	}

	return s.pr.Remove(ctx, userID, postID)
}
