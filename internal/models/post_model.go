package models

import "time"

// Post is the persisted outcome of one provider publish attempt. A request
// fanned out to k providers produces k rows sharing the same RequestID.
type Post struct {
	ID             int64     `db:"id" json:"id"`
	RequestID      string    `db:"request_id" json:"request_id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Provider       Provider  `db:"provider" json:"provider"`
	Text           string    `db:"text" json:"text"`
	Status         string    `db:"status" json:"status"`
	ProviderPostID string    `db:"provider_post_id" json:"provider_post_id,omitempty"`
	ErrorMessage   string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

const (
	PostStatusSuccess = "SUCCESS"
	PostStatusFailed  = "FAILED"
)
