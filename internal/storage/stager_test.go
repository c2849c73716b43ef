package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	pdfPayload = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
)

type fakeS3 struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	deletes      int
	failNext     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = data
	f.contentTypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	key := aws.ToString(in.Key)
	if _, ok := f.objects[key]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "gone"}
	}
	delete(f.objects, key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestStager_StageResolve(t *testing.T) {
	fake := newFakeS3()
	stager := NewStager(fake, "bucket", "https://cdn.example.com/")
	ctx := context.Background()

	key, err := stager.Stage(ctx, 7, pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "media/7/"))
	assert.True(t, OwnedBy(key, 7))
	assert.False(t, OwnedBy(key, 8))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.Equal(t, "image/png", fake.contentTypes[key])

	data, err := stager.Resolve(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	assert.Equal(t, "https://cdn.example.com/"+key, stager.PublicURL(key))
}

func TestStager_StageRejectsUnsupported(t *testing.T) {
	stager := NewStager(newFakeS3(), "bucket", "")

	_, err := stager.Stage(context.Background(), 1, []byte("just some text"))
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	_, err = stager.Stage(context.Background(), 1, pdfPayload)
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestStager_ResolveMissing(t *testing.T) {
	stager := NewStager(newFakeS3(), "bucket", "")

	_, err := stager.Resolve(context.Background(), "media/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStager_DeleteIsIdempotent(t *testing.T) {
	fake := newFakeS3()
	stager := NewStager(fake, "bucket", "")
	ctx := context.Background()

	key, err := stager.Stage(ctx, 1, pngHeader)
	require.NoError(t, err)

	require.NoError(t, stager.Delete(ctx, key))
	require.NoError(t, stager.Delete(ctx, key))
	assert.Equal(t, 2, fake.deletes)

	_, err = stager.Resolve(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStager_DeletePropagatesOtherErrors(t *testing.T) {
	fake := newFakeS3()
	fake.failNext = errors.New("connection reset")
	stager := NewStager(fake, "bucket", "")

	err := stager.Delete(context.Background(), "media/a.png")
	assert.ErrorContains(t, err, "connection reset")
}

func TestOwnedBy(t *testing.T) {
	tests := []struct {
		key  string
		user int64
		want bool
	}{
		{"media/42/V1StGXR8_Z5jdHi6B-myT.png", 42, true},
		{"media/42/V1StGXR8_Z5jdHi6B-myT.png", 4, false},
		{"media/420/V1StGXR8_Z5jdHi6B-myT.png", 42, false},
		{"media/V1StGXR8_Z5jdHi6B-myT.png", 42, false},
		{"media/42/", 42, false},
		{"media/42/../7/x.png", 42, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OwnedBy(tt.key, tt.user), tt.key)
	}
}
