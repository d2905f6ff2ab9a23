package outbox

import (
	"bytes"
	"context"
	"io"
	"time"
)

// ObjectStore is the part of the S3 store the outbox needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// S3Store uploads previews under previews/ and hands out presigned links.
type S3Store struct {
	objects ObjectStore
	ttl     time.Duration
}

func NewS3Store(objects ObjectStore, ttl time.Duration) *S3Store {
	return &S3Store{objects: objects, ttl: ttl}
}

func (s *S3Store) Save(ctx context.Context, id string, page []byte) (string, error) {
	key := "previews/" + id + ".html"
	if err := s.objects.Upload(ctx, key, bytes.NewReader(page), "text/html; charset=utf-8"); err != nil {
		return "", err
	}
	return s.objects.PresignedURL(ctx, key, s.ttl)
}
