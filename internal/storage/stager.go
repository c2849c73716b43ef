// Package storage keeps uploaded media in an S3 compatible bucket (Cloudflare R2)
// between the moment a user attaches it and the moment every provider has
// consumed it.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/h2non/filetype"
	ftypes "github.com/h2non/filetype/types"
	cfg "github.com/maheshrc27/crosspost/configs"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrNotFound         = errors.New("media not found")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

var allowedTypes = map[string]struct{}{
	"jpg": {}, "png": {}, "gif": {}, "webp": {}, "mp4": {}, "mov": {},
}

const keyPrefix = "media/"

// OwnerPrefix is the key prefix of everything staged for userID.
func OwnerPrefix(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10) + "/"
}

// OwnedBy reports whether key was staged for userID.
func OwnedBy(key string, userID int64) bool {
	rest, ok := strings.CutPrefix(key, OwnerPrefix(userID))
	return ok && rest != "" && !strings.Contains(rest, "/")
}

// Stager stores media under opaque keys. Delete is idempotent: removing a key
// that is already gone succeeds.
type Stager interface {
	Stage(ctx context.Context, userID int64, data []byte) (string, error)
	Resolve(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Stager struct {
	client    S3API
	bucket    string
	publicURL string
}

func NewStager(client S3API, bucket, publicURL string) Stager {
	return &s3Stager{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// NewR2Client builds an S3 client pointed at the account's R2 endpoint.
func NewR2Client(ctx context.Context, r2 cfg.R2) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r2.AccessKey, r2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r2.AccountID))
	}), nil
}

// Stage sniffs data, rejects anything that is not an allowed image or video
// and stores it under a fresh key in the owner's prefix.
func (s *s3Stager) Stage(ctx context.Context, userID int64, data []byte) (string, error) {
	kind, err := filetype.Match(data)
	if err != nil || kind == ftypes.Unknown {
		return "", ErrUnsupportedMedia
	}
	if _, ok := allowedTypes[kind.Extension]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, kind.MIME.Value)
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	key := OwnerPrefix(userID) + id + "." + kind.Extension

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(kind.MIME.Value),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("stage %s: %w", key, err)
	}

	return key, nil
}

func (s *s3Stager) Resolve(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		slog.Info(err.Error())
		return nil, fmt.Errorf("resolve %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *s3Stager) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		slog.Info(err.Error())
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *s3Stager) PublicURL(key string) string {
	return s.publicURL + "/" + key
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}
