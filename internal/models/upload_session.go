package models

import "fmt"

type UploadState string

const (
	UploadInit       UploadState = "INIT"
	UploadAppending  UploadState = "APPENDING"
	UploadFinalizing UploadState = "FINALIZING"
	UploadProcessing UploadState = "PROCESSING"
	UploadReady      UploadState = "READY"
	UploadFailed     UploadState = "FAILED"
)

var uploadRank = map[UploadState]int{
	UploadInit:       0,
	UploadAppending:  1,
	UploadFinalizing: 2,
	UploadProcessing: 3,
	UploadReady:      4,
}

// UploadSession follows one media item through a provider upload protocol.
// It lives only as long as the publish call that created it.
type UploadSession struct {
	MediaID    string
	TotalBytes int
	BytesSent  int
	State      UploadState
}

func NewUploadSession(totalBytes int) *UploadSession {
	return &UploadSession{TotalBytes: totalBytes, State: UploadInit}
}

func (s *UploadSession) Advance(next UploadState) error {
	if s.State == UploadReady || s.State == UploadFailed {
		return fmt.Errorf("upload session %s: already %s", s.MediaID, s.State)
	}
	if next == UploadFailed {
		s.State = next
		return nil
	}
	rank, ok := uploadRank[next]
	if !ok {
		return fmt.Errorf("upload session %s: unknown state %s", s.MediaID, next)
	}
	if rank <= uploadRank[s.State] {
		return fmt.Errorf("upload session %s: cannot move from %s to %s", s.MediaID, s.State, next)
	}
	s.State = next
	return nil
}

// Sent records an acknowledged chunk.
func (s *UploadSession) Sent(n int) {
	s.BytesSent += n
}
