package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxObjectBytes bounds a single fetched blueprint.
const MaxObjectBytes = 64 << 20

// API is the subset of the S3 client the store calls.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store puts blueprints under s3://<bucket>/<prefix>/<owner>/<name>.
type Store struct {
	api    API
	bucket string
	prefix string
}

func New(ctx context.Context, region, bucket, prefix string) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithAPI(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func NewWithAPI(api API, bucket, prefix string) *Store {
	return &Store{
		api:    api,
		bucket: strings.TrimSpace(bucket),
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}
}

func (s *Store) Put(ctx context.Context, ownerID, filename, contentType string, data []byte) (string, error) {
	key := applyPrefix(s.prefix, path.Join(strings.Trim(ownerID, "/"), path.Base(filename)))
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.api.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// Fetch reads an s3:// URL. The bucket in the URL must match the store's bucket.
func (s *Store) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("parse s3 url: %w", err)
	}
	if u.Scheme != "s3" {
		return nil, "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host != s.bucket {
		return nil, "", fmt.Errorf("bucket %q is not configured", u.Host)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return nil, "", fmt.Errorf("s3 url %s has no key", rawURL)
	}

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("s3 get object bucket=%s key=%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	if out.ContentLength != nil && *out.ContentLength > MaxObjectBytes {
		return nil, "", fmt.Errorf("s3 object too large: %d bytes", *out.ContentLength)
	}
	data, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read s3 object key=%s: %w", key, err)
	}
	if len(data) > MaxObjectBytes {
		return nil, "", fmt.Errorf("s3 object too large: %d bytes", len(data))
	}
	return data, aws.ToString(out.ContentType), nil
}

func applyPrefix(prefix, key string) string {
	cleanKey := strings.TrimLeft(key, "/")
	if prefix == "" {
		return cleanKey
	}
	return prefix + "/" + cleanKey
}
