package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (int64, error)
	ListByUserID(ctx context.Context, userID int64, unreadOnly bool) ([]*models.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (bool, error)
	Remove(ctx context.Context, userID, id int64) (bool, error)
	Clear(ctx context.Context, userID int64) (int64, error)
}

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) (int64, error) {
	query := `
		INSERT INTO notifications (user_id, type, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, n.UserID, n.Type, n.Message).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return n.ID, nil
}

func (r *notificationRepository) ListByUserID(ctx context.Context, userID int64, unreadOnly bool) ([]*models.Notification, error) {
	query := `SELECT id, user_id, type, message, is_read, created_at FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	return r.exec(ctx, query, id, userID)
}

func (r *notificationRepository) Remove(ctx context.Context, userID, id int64) (bool, error) {
	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2`
	return r.exec(ctx, query, id, userID)
}

func (r *notificationRepository) Clear(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}

func (r *notificationRepository) exec(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
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
