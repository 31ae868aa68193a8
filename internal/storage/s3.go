package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds S3/MinIO client configuration.
type Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string // "hvlinks"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Client archives scraped pages to S3/MinIO.
type Client struct {
	minioClient *minio.Client
	bucket      string
}

// New creates a new S3/MinIO client.
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// SnapshotMetadata describes one archived scrape.
type SnapshotMetadata struct {
	SourceURL      string   `json:"source_url"`
	Title          string   `json:"title,omitempty"`
	Timestamp      string   `json:"timestamp"`
	LinksProcessed int      `json:"links_processed"`
	Keywords       []string `json:"keywords"`
	Links          []string `json:"links"` // absolute link URLs in document order
}

// SnapshotPrefix returns a unique prefix: scrapes/{host}/{timestamp}-{shortid}.
func SnapshotPrefix(host string, now time.Time) string {
	timestamp := now.UTC().Format("2006-01-02T15-04-05")
	shortID := uuid.New().String()[:8]
	return fmt.Sprintf("scrapes/%s/%s-%s", host, timestamp, shortID)
}

// PutSnapshot writes the fetched page and its metadata under prefix.
func (c *Client) PutSnapshot(ctx context.Context, prefix string, page []byte, contentType string, meta SnapshotMetadata) error {
	if contentType == "" {
		contentType = "text/html"
	}

	_, err := c.minioClient.PutObject(ctx, c.bucket, path.Join(prefix, "page.html"),
		bytes.NewReader(page), int64(len(page)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to put page: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = c.minioClient.PutObject(ctx, c.bucket, path.Join(prefix, "metadata.json"),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to put metadata: %w", err)
	}
	return nil
}

// GetPage reads an archived page body.
func (c *Client) GetPage(ctx context.Context, prefix string) ([]byte, error) {
	return c.get(ctx, path.Join(prefix, "page.html"))
}

// GetMetadata reads the metadata of an archived scrape.
func (c *Client) GetMetadata(ctx context.Context, prefix string) (*SnapshotMetadata, error) {
	data, err := c.get(ctx, path.Join(prefix, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta SnapshotMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &meta, nil
}

func (c *Client) get(ctx context.Context, objectName string) ([]byte, error) {
	object, err := c.minioClient.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", objectName, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", objectName, err)
	}
	return data, nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}
