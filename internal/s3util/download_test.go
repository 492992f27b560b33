package s3util

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type fakeS3 struct {
	body   string
	err    error
	gotKey string
	gotBkt string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gotBkt = aws.ToString(in.Bucket)
	f.gotKey = aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(f.body)),
		ContentLength: aws.Int64(int64(len(f.body))),
	}, nil
}

func TestDownload(t *testing.T) {
	s3c := &fakeS3{body: strings.Repeat("a", 70*1024)}
	f := NewFetcher(s3c, "meeting-recordings")

	data, err := f.Download(context.Background(), "/u1/meeting.mp3")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(data) != 70*1024 {
		t.Errorf("len = %d", len(data))
	}
	if s3c.gotBkt != "meeting-recordings" || s3c.gotKey != "u1/meeting.mp3" {
		t.Errorf("bucket/key = %s/%s", s3c.gotBkt, s3c.gotKey)
	}
}

func TestDownload_ProviderError(t *testing.T) {
	s3c := &fakeS3{err: &smithy.GenericAPIError{Code: "NoSuchKey", Message: "The specified key does not exist."}}
	f := NewFetcher(s3c, "b")

	_, err := f.Download(context.Background(), "a/b.mp3")
	var serr *StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %T %v", err, err)
	}
	if serr.Code != "NoSuchKey" {
		t.Errorf("Code = %q", serr.Code)
	}
	if want := "Failed to download file: The specified key does not exist."; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestDownload_PlainError(t *testing.T) {
	f := NewFetcher(&fakeS3{err: errors.New("connection reset")}, "b")
	_, err := f.Download(context.Background(), "a/b.mp3")
	if err == nil || err.Error() != "Failed to download file: connection reset" {
		t.Errorf("err = %v", err)
	}
}
