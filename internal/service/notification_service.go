package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationService interface {
	List(ctx context.Context, userID int64, unreadOnly bool) ([]*models.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) error
	Remove(ctx context.Context, userID, id int64) error
	Clear(ctx context.Context, userID int64) (int64, error)
}

type notificationService struct {
	nr repository.NotificationRepository
}

func NewNotificationService(nr repository.NotificationRepository) NotificationService {
	return &notificationService{nr: nr}
}

func (s *notificationService) List(ctx context.Context, userID int64, unreadOnly bool) ([]*models.Notification, error) {
	if userID == 0 {
		err := errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	notifications, err := s.nr.ListByUserID(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("Error getting notifications: %w", err)
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	return notifications, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id int64) error {
	ok, err := s.nr.MarkRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *notificationService) Remove(ctx context.Context, userID, id int64) error {
	ok, err := s.nr.Remove(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *notificationService) Clear(ctx context.Context, userID int64) (int64, error) {
	n, err := s.nr.Clear(ctx, userID)
	if err != nil {
		return 0, err
	}
	slog.Info("notifications cleared", "user_id", userID, "count", n)
	return n, nil
}
