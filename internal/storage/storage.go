// Package storage provides the trimmed read-only object storage surface the
// judge needs to fetch problem data-pack archives; uploads are an API
// concern, out of scope here.
package storage

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStat is the subset of object metadata the cache layer checks before
// deciding whether a cached copy is stale.
type ObjectStat struct {
	Size         int64
	ETag         string
	LastModified int64 // unix seconds
}

// ObjectStorage is read-only: GetObject streams a data pack, StatObject
// checks its freshness without downloading it.
type ObjectStorage interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, key string) (ObjectStat, error)
}

// MinIOStorage implements ObjectStorage over the MinIO Go client.
type MinIOStorage struct {
	client *minio.Client
}

func NewMinIOStorage(endpoint, accessKey, secretKey string, useSSL bool) (*MinIOStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinIOStorage{client: client}, nil
}

func (s *MinIOStorage) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

func (s *MinIOStorage) StatObject(ctx context.Context, bucket, key string) (ObjectStat, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectStat{}, err
	}
	return ObjectStat{Size: info.Size, ETag: info.ETag, LastModified: info.LastModified.Unix()}, nil
}
