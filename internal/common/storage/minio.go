package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"agent-demo-webhooks/internal/common/config"
)

// Client signs download URLs for objects in the demo video bucket.
type Client struct {
	mc     *minio.Client
	bucket string
}

func NewMinIO(cfg config.StorageConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseTLS,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Client{mc: mc, bucket: cfg.Bucket}, nil
}

// Ping checks that the bucket exists.
func (c *Client) Ping(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", c.bucket)
	}
	return nil
}

// SignedURL returns a presigned GET URL for objectPath valid for ttl.
func (c *Client) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	name := ObjectName(c.bucket, objectPath)
	if name == "" {
		return "", fmt.Errorf("empty object path")
	}
	u, err := c.mc.PresignedGetObject(ctx, c.bucket, name, ttl, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ObjectName normalizes a stored video path: leading slashes and a leading
// bucket segment are removed.
func ObjectName(bucket, objectPath string) string {
	name := strings.TrimLeft(strings.TrimSpace(objectPath), "/")
	if bucket != "" {
		name = strings.TrimPrefix(name, bucket+"/")
	}
	return name
}
