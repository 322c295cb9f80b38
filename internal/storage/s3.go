// Package storage uploads report images to S3 compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
)

// ImageStore saves an image and returns the URL it is served from.
type ImageStore interface {
	PutImage(ctx context.Context, key string, data []byte) (string, error)
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PublicURL is the base URL objects are served from. Defaults to the
	// virtual-hosted AWS URL of the bucket.
	PublicURL string
}

type S3ImageStore struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3ImageStore(ctx context.Context, cfg S3Config) (*S3ImageStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3ImageStore{client: client, bucket: cfg.Bucket, publicURL: publicURL}, nil
}

// PutImage uploads data under key plus an extension derived from its content.
func (s *S3ImageStore) PutImage(ctx context.Context, key string, data []byte) (string, error) {
	mt := mimetype.Detect(data)
	objectKey := key + mt.Extension()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mt.String()),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}

	return s.publicURL + "/" + objectKey, nil
}

// ObjectKey is the storage key for a report image.
func ObjectKey(reportID string) string {
	return "reports/" + reportID
}
