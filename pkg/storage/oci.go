package storage

import (
	"context"
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
)

const listPageSize = 1000

// ObjectStorageAPI is the subset of objectstorage.ObjectStorageClient used here.
type ObjectStorageAPI interface {
	ListObjects(ctx context.Context, request objectstorage.ListObjectsRequest) (objectstorage.ListObjectsResponse, error)
	RenameObject(ctx context.Context, request objectstorage.RenameObjectRequest) (objectstorage.RenameObjectResponse, error)
}

// OCIStore is an ObjectStore over an OCI Object Storage bucket.
type OCIStore struct {
	client    ObjectStorageAPI
	namespace string
	bucket    string
}

// NewOCIStore binds a client to namespace/bucket.
func NewOCIStore(client ObjectStorageAPI, namespace, bucket string) *OCIStore {
	return &OCIStore{client: client, namespace: namespace, bucket: bucket}
}

// ResolveNamespace looks up the tenancy's Object Storage namespace.
func ResolveNamespace(ctx context.Context, client objectstorage.ObjectStorageClient) (string, error) {
	resp, err := client.GetNamespace(ctx, objectstorage.GetNamespaceRequest{})
	if err != nil {
		return "", fmt.Errorf("get object storage namespace: %w", err)
	}
	return *resp.Value, nil
}

// List pages through every object under prefix.
func (s *OCIStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	var start *string
	for {
		resp, err := s.client.ListObjects(ctx, objectstorage.ListObjectsRequest{
			NamespaceName: common.String(s.namespace),
			BucketName:    common.String(s.bucket),
			Prefix:        common.String(prefix),
			Start:         start,
			Limit:         common.Int(listPageSize),
			Fields:        common.String("name,size"),
		})
		if err != nil {
			return nil, fmt.Errorf("list objects %s/%s: %w", s.bucket, prefix, err)
		}

		for _, summary := range resp.ListObjects.Objects {
			o := Object{Key: *summary.Name}
			if summary.Size != nil {
				o.Size = *summary.Size
			}
			objects = append(objects, o)
		}

		if resp.ListObjects.NextStartWith == nil || *resp.ListObjects.NextStartWith == "" {
			return objects, nil
		}
		start = resp.ListObjects.NextStartWith
	}
}

// Move renames the object inside the bucket. Object Storage renames are
// atomic, so the object is never visible under both names.
func (s *OCIStore) Move(ctx context.Context, src, dst string) error {
	_, err := s.client.RenameObject(ctx, objectstorage.RenameObjectRequest{
		NamespaceName: common.String(s.namespace),
		BucketName:    common.String(s.bucket),
		RenameObjectDetails: objectstorage.RenameObjectDetails{
			SourceName: common.String(src),
			NewName:    common.String(dst),
		},
	})
	if err != nil {
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}
	return nil
}
