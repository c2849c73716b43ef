package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	for _, name := range []string{"twitter", "linkedin", "instagram", "threads"} {
		p, err := ParseProvider(name)
		require.NoError(t, err)
		assert.Equal(t, Provider(name), p)
	}

	_, err := ParseProvider("myspace")
	assert.Error(t, err)
}

func TestUploadSession_Advance(t *testing.T) {
	t.Run("forward with skipped processing", func(t *testing.T) {
		s := NewUploadSession(10)
		require.NoError(t, s.Advance(UploadAppending))
		require.NoError(t, s.Advance(UploadFinalizing))
		require.NoError(t, s.Advance(UploadReady))
		assert.Equal(t, UploadReady, s.State)
	})

	t.Run("no regression", func(t *testing.T) {
		s := NewUploadSession(10)
		require.NoError(t, s.Advance(UploadFinalizing))
		assert.Error(t, s.Advance(UploadAppending))
		assert.Error(t, s.Advance(UploadFinalizing))
	})

	t.Run("failed is terminal from any state", func(t *testing.T) {
		for _, from := range []UploadState{UploadInit, UploadAppending, UploadFinalizing, UploadProcessing} {
			s := &UploadSession{State: from}
			require.NoError(t, s.Advance(UploadFailed))
			assert.Error(t, s.Advance(UploadReady))
		}
	})

	t.Run("ready is terminal", func(t *testing.T) {
		s := &UploadSession{State: UploadReady}
		assert.Error(t, s.Advance(UploadFailed))
	})
}

func TestDispatch(t *testing.T) {
	t.Run("text only skips media states", func(t *testing.T) {
		d := NewDispatch(ProviderTwitter)
		require.NoError(t, d.Advance(DispatchPublishing))
		require.NoError(t, d.Advance(DispatchSucceeded))
		assert.True(t, d.Terminal())
	})

	t.Run("fail keeps the error", func(t *testing.T) {
		d := NewDispatch(ProviderLinkedIn)
		require.NoError(t, d.Advance(DispatchMediaUploading))
		cause := errors.New("register upload: 500")
		d.Fail(cause)
		assert.Equal(t, DispatchFailed, d.State)
		assert.ErrorIs(t, d.Err, cause)

		d.Fail(errors.New("later"))
		assert.ErrorIs(t, d.Err, cause)
		assert.Error(t, d.Advance(DispatchPublishing))
	})

	t.Run("no regression", func(t *testing.T) {
		d := NewDispatch(ProviderInstagram)
		require.NoError(t, d.Advance(DispatchMediaReady))
		assert.Error(t, d.Advance(DispatchMediaUploading))
	})
}
