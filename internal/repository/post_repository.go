package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByUserID(ctx context.Context, userID int64, limit int) ([]*models.Post, error)
	GetByRequestID(ctx context.Context, userID int64, requestID string) ([]*models.Post, error)
	Remove(ctx context.Context, userID, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, request_id, user_id, provider, text, status, provider_post_id, error_message, created_at`

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (request_id, user_id, provider, text, status, provider_post_id, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	args := []interface{}{post.RequestID, post.UserID, post.Provider, post.Text, post.Status, post.ProviderPostID, post.ErrorMessage}

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
	return r.list(ctx, query, userID, limit)
}

func (r *postRepository) GetByRequestID(ctx context.Context, userID int64, requestID string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 AND request_id = $2 ORDER BY id`
	return r.list(ctx, query, userID, requestID)
}

func (r *postRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var post models.Post
		err := rows.Scan(&post.ID, &post.RequestID, &post.UserID, &post.Provider, &post.Text,
			&post.Status, &post.ProviderPostID, &post.ErrorMessage, &post.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, &post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Remove(ctx context.Context, userID, id int64) error {
	query := `DELETE FROM posts WHERE id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
