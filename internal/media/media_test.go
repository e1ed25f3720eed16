package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/Leganyst/consultation-platform/internal/apperr"
)

func TestCoverObject(t *testing.T) {
	name, ct, err := CoverObject(Upload{Filename: "Photo.JPG", Data: []byte{1}})
	if err != nil {
		t.Fatalf("jpg rejected: %v", err)
	}
	if ct != "image/jpeg" || !strings.HasSuffix(name, ".jpg") {
		t.Fatalf("unexpected object %q %q", name, ct)
	}

	for _, bad := range []Upload{
		{Filename: "doc.pdf", Data: []byte{1}},
		{Filename: "noext", Data: []byte{1}},
		{Filename: "empty.png"},
		{Filename: "huge.png", Data: make([]byte, MaxCoverSize+1)},
	} {
		if _, _, err := CoverObject(bad); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("%s: want VALIDATION_ERROR, got %v", bad.Filename, err)
		}
	}
}

func TestDiskStore_Put(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "/uploads")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	url, err := store.Put(context.Background(), "a.png", "image/png", []byte("png"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "/uploads/a.png" {
		t.Fatalf("unexpected url %q", url)
	}
	b, err := os.ReadFile(filepath.Join(dir, "a.png"))
	if err != nil || string(b) != "png" {
		t.Fatalf("file not written: %v", err)
	}

	if _, err := store.Put(context.Background(), "../escape.png", "image/png", []byte("x")); err == nil {
		t.Fatalf("path traversal must be rejected")
	}
}

type fakeS3 struct {
	s3iface.S3API
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Put(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Store(fake, "covers-bucket", "/covers/", "https://cdn.example.com/")

	url, err := store.Put(context.Background(), "x.png", "image/png", []byte("data"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "https://cdn.example.com/covers/x.png" {
		t.Fatalf("unexpected url %q", url)
	}
	if aws.StringValue(fake.input.Key) != "covers/x.png" || aws.StringValue(fake.input.ContentType) != "image/png" {
		t.Fatalf("unexpected put input %+v", fake.input)
	}
	if !bytes.Equal(fake.body, []byte("data")) {
		t.Fatalf("unexpected body %q", fake.body)
	}
}
