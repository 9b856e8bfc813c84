package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioAPI is the subset of minio.Client used by MinioStore.
type MinioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioStore is an ObjectStore over any S3-compatible endpoint.
type MinioStore struct {
	client MinioAPI
	bucket string
}

// NewMinioClient initializes a MinIO client with static credentials.
func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client init error: %w", err)
	}
	return client, nil
}

// NewMinioStore binds client to bucket after checking that it exists.
func NewMinioStore(ctx context.Context, client MinioAPI, bucket string) (*MinioStore, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("error checking bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]Object, error) {
	// Cancelling stops the lister goroutine when we return early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []Object
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects %s/%s: %w", s.bucket, prefix, info.Err)
		}
		objects = append(objects, Object{Key: info.Key, Size: info.Size})
	}
	return objects, nil
}

// Move copies src to dst and then removes src. A failure between the two
// calls leaves the object under both keys.
func (s *MinioStore) Move(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: s.bucket, Object: src},
	)
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, src, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", src, err)
	}
	return nil
}
