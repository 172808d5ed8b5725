package articles

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mfenderov/samanta/pkg/models"
)

// S3Config holds S3/MinIO client configuration.
type S3Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string
	Key             string // Object key holding the CSV table
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// S3Store keeps the article table as a single CSV object.
type S3Store struct {
	minioClient *minio.Client
	bucket      string
	key         string
}

// NewS3Store creates a new S3/MinIO backed store.
func NewS3Store(config S3Config) (*S3Store, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if config.Key == "" {
		return nil, fmt.Errorf("key is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &S3Store{
		minioClient: minioClient,
		bucket:      config.Bucket,
		key:         config.Key,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.minioClient.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.minioClient.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Load reads the table object; a missing object is an empty table.
func (s *S3Store) Load(ctx context.Context) (*Table, error) {
	object, err := s.minioClient.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	defer object.Close()

	if _, err := object.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return &Table{}, nil
		}
		return nil, fmt.Errorf("failed to stat table: %w", err)
	}

	return ReadTable(object)
}

// Append adds the article and rewrites the whole object.
func (s *S3Store) Append(ctx context.Context, article models.Article) error {
	table, err := s.Load(ctx)
	if err != nil {
		return err
	}
	table.AppendArticle(article)

	var buf bytes.Buffer
	if err := table.Write(&buf); err != nil {
		return err
	}

	_, err = s.minioClient.PutObject(ctx, s.bucket, s.key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return fmt.Errorf("failed to put table: %w", err)
	}

	slog.Debug("article appended", "bucket", s.bucket, "key", s.key, "rows", len(table.Rows), "url", article.URL)
	return nil
}
