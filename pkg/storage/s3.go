package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Folder names partition the media bucket by upload kind.
const (
	FolderClientDocs    = "crm/clients/docs"
	FolderClientImages  = "crm/clients/images"
	FolderUserAvatars   = "crm/users/avatars"
	FolderProductImages = "crm/products/images"
)

// Uploader stores uploaded media and returns a public URL for it.
type Uploader interface {
	Upload(ctx context.Context, folder, filename, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, fileURL string) error
}

// Config holds S3 media storage configuration.
type Config struct {
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	Bucket             string
	// BaseURL is the public prefix media URLs are built from, e.g. a CDN
	// domain. Empty means the standard S3 URL form.
	BaseURL string
}

// S3Store uploads media to an S3 bucket.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Store creates a media store backed by S3.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.AWSRegion)
	}

	return &S3Store{
		client:  s3.NewFromConfig(awsCfg),
		bucket:  cfg.Bucket,
		baseURL: baseURL,
	}, nil
}

// Upload stores the body under a unique key in the given folder and returns
// the public URL. The original filename only contributes its extension.
func (s *S3Store) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader) (string, error) {
	key := fmt.Sprintf("%s/%d-%s%s",
		strings.Trim(folder, "/"),
		time.Now().UnixNano(),
		uuid.New().String()[:8],
		strings.ToLower(path.Ext(filename)),
	)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return s.baseURL + "/" + key, nil
}

// Delete removes the object a previously returned URL points at. URLs that
// do not belong to this store are ignored.
func (s *S3Store) Delete(ctx context.Context, fileURL string) error {
	key, ok := s.keyFromURL(fileURL)
	if !ok {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func (s *S3Store) keyFromURL(fileURL string) (string, bool) {
	if fileURL == "" {
		return "", false
	}
	if !strings.HasPrefix(fileURL, s.baseURL+"/") {
		return "", false
	}
	key := strings.TrimPrefix(fileURL, s.baseURL+"/")
	if key == "" {
		return "", false
	}
	return key, true
}
