package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds construction parameters. Credentials fall back to the
// default AWS chain when no static key is given.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, e.g. MinIO
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
	URLExpiry       time.Duration // presigned URL lifetime (default 15m)
}

// S3 stores objects in a single bucket.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

var _ Store = (*S3)(nil)

// NewS3 creates an S3 store.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &S3{client: client, presign: s3.NewPresignClient(client), bucket: cfg.Bucket, expiry: expiry}, nil
}

// Put uploads r to key, replacing any existing object.
func (s *S3) Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return Info{}, err
	}
	if contentType == "" {
		contentType = ContentType(clean)
	}
	body := &countingReader{r: r}
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(clean),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Info{}, fmt.Errorf("put %s: %w", clean, err)
	}
	return Info{
		Key:         clean,
		Size:        body.n,
		ContentType: contentType,
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Get downloads key.
func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return nil, Info{}, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(clean)})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, Info{}, fmt.Errorf("%s: %w", clean, ErrNotFound)
		}
		return nil, Info{}, fmt.Errorf("get %s: %w", clean, err)
	}
	info := Info{
		Key:         clean,
		ContentType: aws.ToString(out.ContentType),
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
	}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	return out.Body, info, nil
}

// Delete removes key.
func (s *S3) Delete(ctx context.Context, key string) error {
	clean, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(clean)}); err != nil {
		return fmt.Errorf("delete %s: %w", clean, err)
	}
	return nil
}

// URL returns a presigned GET URL.
func (s *S3) URL(ctx context.Context, key string) (string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	out, err := s.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(clean)},
		func(o *s3.PresignOptions) { o.Expires = s.expiry },
	)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", clean, err)
	}
	return out.URL, nil
}
