package payload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aimerfeng/LineHook/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// expiresAtKey is the object metadata key carrying the entry's expiry
const expiresAtKey = "expires-at"

// S3Backend stores payloads as objects. S3 has no per-object TTL, so the
// expiry is written to object metadata and enforced on read; a bucket
// lifecycle rule is expected to reclaim the storage.
type S3Backend struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

// NewS3Backend creates an S3 payload backend. Static credentials are used when
// configured, otherwise the default AWS credential chain applies.
func NewS3Backend(ctx context.Context, cfg config.S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Backend{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

// Put uploads data under key with an expiry ttl from now
func (b *S3Backend) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			expiresAtKey: b.now().Add(ttl).UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("putting object: %w", err)
	}
	return nil
}

// Get downloads the object under key. Expired objects are reported missing.
func (b *S3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting object: %w", err)
	}
	defer resp.Body.Close()

	if expired(resp.Metadata, b.now()) {
		return nil, ErrNotFound
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object: %w", err)
	}
	return data, nil
}

// expired reports whether object metadata marks the entry as past its expiry.
// Objects without a parseable expiry never expire here.
func expired(metadata map[string]string, now time.Time) bool {
	for k, v := range metadata {
		if !strings.EqualFold(k, expiresAtKey) {
			continue
		}
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return false
		}
		return !now.Before(at)
	}
	return false
}
