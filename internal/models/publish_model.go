package models

import (
	"fmt"
	"time"
)

// PublishRequest is one user action: a single post fanned out to several providers.
type PublishRequest struct {
	RequestID   string     `json:"request_id"`
	UserID      int64      `json:"user_id"`
	Text        string     `json:"text"`
	MediaKeys   []string   `json:"media_keys"`
	Providers   []Provider `json:"providers"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

type PublishStatus string

const (
	PublishSuccess PublishStatus = "SUCCESS"
	PublishFailed  PublishStatus = "FAILED"
)

// PublishResult is the outcome for one provider of a PublishRequest. Exactly one
// of Response (on success) or Error (on failure) is meaningful.
type PublishResult struct {
	Provider Provider      `json:"provider"`
	Status   PublishStatus `json:"status"`
	Response string        `json:"response,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// DispatchState tracks one provider attempt inside the orchestrator.
type DispatchState string

const (
	DispatchPending        DispatchState = "PENDING"
	DispatchMediaUploading DispatchState = "MEDIA_UPLOADING"
	DispatchMediaReady     DispatchState = "MEDIA_READY"
	DispatchPublishing     DispatchState = "PUBLISHING"
	DispatchSucceeded      DispatchState = "SUCCEEDED"
	DispatchFailed         DispatchState = "FAILED"
)

var dispatchRank = map[DispatchState]int{
	DispatchPending:        0,
	DispatchMediaUploading: 1,
	DispatchMediaReady:     2,
	DispatchPublishing:     3,
	DispatchSucceeded:      4,
}

// Dispatch is the linear state machine of a single provider publish attempt.
// Media states may be skipped, but a transition never goes backwards and
// nothing leaves SUCCEEDED or FAILED.
type Dispatch struct {
	Provider Provider
	State    DispatchState
	Err      error
}

func NewDispatch(p Provider) *Dispatch {
	return &Dispatch{Provider: p, State: DispatchPending}
}

func (d *Dispatch) Terminal() bool {
	return d.State == DispatchSucceeded || d.State == DispatchFailed
}

func (d *Dispatch) Advance(next DispatchState) error {
	if d.Terminal() {
		return fmt.Errorf("dispatch %s: already %s", d.Provider, d.State)
	}
	if next == DispatchFailed {
		d.State = next
		return nil
	}
	rank, ok := dispatchRank[next]
	if !ok {
		return fmt.Errorf("dispatch %s: unknown state %s", d.Provider, next)
	}
	if rank <= dispatchRank[d.State] {
		return fmt.Errorf("dispatch %s: cannot move from %s to %s", d.Provider, d.State, next)
	}
	d.State = next
	return nil
}

// Fail moves the attempt to FAILED keeping the error that caused it.
func (d *Dispatch) Fail(err error) {
	if d.Terminal() {
		return
	}
	d.State = DispatchFailed
	d.Err = err
}
