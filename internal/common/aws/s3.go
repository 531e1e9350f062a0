// internal/common/aws/s3.go
package aws

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"job-board/internal/common/config"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Client stores resumes and company logos in an S3-compatible bucket store.
type S3Client struct {
	client        putObjectAPI
	presigner     presignAPI
	region        string
	endpoint      string
	usePathStyle  bool
	publicBaseURL string
}

func NewS3Client(awsCfg awssdk.Config, cfg config.StorageConfig) *S3Client {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Client{
		client:        client,
		presigner:     s3.NewPresignClient(client),
		region:        cfg.Region,
		endpoint:      strings.TrimSuffix(cfg.Endpoint, "/"),
		usePathStyle:  cfg.UsePathStyle,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}
}

// Upload writes body to bucket/key. Existing objects are not overwritten by callers
// because every key embeds a millisecond timestamp.
func (s *S3Client) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        awssdk.String(bucket),
		Key:           awssdk.String(key),
		Body:          body,
		ContentType:   awssdk.String(contentType),
		ContentLength: awssdk.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PublicURL returns the unsigned URL for an object in a public bucket.
func (s *S3Client) PublicURL(bucket, key string) string {
	escaped := escapeKey(key)
	switch {
	case s.publicBaseURL != "":
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, bucket, escaped)
	case s.endpoint != "" && s.usePathStyle:
		return fmt.Sprintf("%s/%s/%s", s.endpoint, bucket, escaped)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.region, escaped)
	}
}

// SignedURL returns a GET URL that expires after ttl.
func (s *S3Client) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: awssdk.String(bucket),
		Key:    awssdk.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
