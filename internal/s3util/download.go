// Package s3util reads uploaded meeting recordings from S3.
package s3util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// ObjectGetter is the part of the S3 API used for downloads. *s3.Client
// satisfies it.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// StorageError is a failed download from the content store. It is not
// retried: a missing or unreadable object is not transient.
type StorageError struct {
	Path    string
	Code    string // provider error code, e.g. NoSuchKey
	Message string
	Err     error
}

func (e *StorageError) Error() string {
	return "Failed to download file: " + e.Message
}

func (e *StorageError) Unwrap() error { return e.Err }

// Fetcher downloads objects from one bucket.
type Fetcher struct {
	client ObjectGetter
	bucket string
}

// NewFetcher creates a Fetcher for bucket.
func NewFetcher(client ObjectGetter, bucket string) *Fetcher {
	return &Fetcher{client: client, bucket: bucket}
}

// Download returns the full contents of the object at path. Failures are
// returned as *StorageError carrying the provider's message.
func (f *Fetcher) Download(ctx context.Context, path string) ([]byte, error) {
	key := strings.TrimPrefix(path, "/")
	logger := zerolog.Ctx(ctx).With().Str("stage", "storage").Str("bucket", f.bucket).Str("key", key).Logger()
	logger.Debug().Msg("Downloading from S3")

	start := time.Now()
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		serr := newStorageError(key, err)
		logger.Error().Err(err).Str("code", serr.Code).Msg("S3 GetObject failed")
		return nil, serr
	}
	defer out.Body.Close()

	var data []byte
	if out.ContentLength != nil && *out.ContentLength > 0 {
		data = make([]byte, 0, *out.ContentLength)
	}
	buf := make([]byte, 32*1024)
	for {
		n, readErr := out.Body.Read(buf)
		data = append(data, buf[:n]...)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			logger.Error().Err(readErr).Int("bytesRead", len(data)).Msg("S3 object read failed")
			return nil, newStorageError(key, readErr)
		}
	}

	logger.Info().
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Downloaded recording")
	return data, nil
}

func newStorageError(key string, err error) *StorageError {
	serr := &StorageError{Path: key, Message: err.Error(), Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		serr.Code = apiErr.ErrorCode()
		if msg := apiErr.ErrorMessage(); msg != "" {
			serr.Message = msg
		} else {
			serr.Message = fmt.Sprintf("%s: %s", apiErr.ErrorCode(), key)
		}
	}
	return serr
}
