package batchsource

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// batchSuffix selects batch artifacts among stored objects.
const batchSuffix = ".json"

// BucketConfig holds S3-compatible connection settings.
type BucketConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Prefix    string
}

// Bucket reads batch artifacts from an S3-compatible bucket.
// Acknowledging a batch deletes its object.
type Bucket struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewBucket connects to the bucket described by cfg.
func NewBucket(cfg *BucketConfig) (*Bucket, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket source: endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Bucket{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// List returns pending batch object names in lexical order.
func (b *Bucket) List(ctx context.Context) ([]string, error) {
	var names []string
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    b.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", b.bucket, b.prefix, obj.Err)
		}
		if isBatchName(obj.Key) {
			names = append(names, obj.Key)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Fetch downloads one batch object.
func (b *Bucket) Fetch(ctx context.Context, name string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", b.bucket, name, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", b.bucket, name, err)
	}
	return data, nil
}

// Ack deletes a consumed batch object. A missing object counts as acknowledged.
func (b *Bucket) Ack(ctx context.Context, name string) error {
	err := b.client.RemoveObject(ctx, b.bucket, name, minio.RemoveObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil
		}
		return fmt.Errorf("remove %s/%s: %w", b.bucket, name, err)
	}
	return nil
}

// String identifies the source in logs.
func (b *Bucket) String() string {
	return "s3://" + b.bucket + "/" + b.prefix
}

func isBatchName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), batchSuffix)
}
