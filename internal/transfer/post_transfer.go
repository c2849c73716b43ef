package transfer

import "time"

type PostCreation struct {
	Text        string     `json:"text"`
	MediaKeys   []string   `json:"media_keys"`
	Providers   []string   `json:"providers"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

type PostCreated struct {
	RequestID   string    `json:"request_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type MediaStaged struct {
	Keys []string `json:"keys"`
}
