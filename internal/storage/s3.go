package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"icescan/internal/domain"
)

// Compile-time checks: S3 implements FileIO and Lister.
var _ domain.FileIO = (*S3)(nil)
var _ domain.Lister = (*S3)(nil)

// S3API is the subset of the S3 client used for reading tables.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Config holds static credentials for S3 or an S3-compatible store.
type S3Config struct {
	KeyID        string
	Secret       string
	Region       string
	Endpoint     string // host[:port] or URL; empty uses AWS defaults
	UsePathStyle bool
}

// S3 reads table files from S3 (s3://, s3a://, s3n://).
type S3 struct {
	client S3API
}

// NewS3 creates an S3 FileIO from static credentials.
func NewS3(cfg S3Config) *S3 {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.KeyID != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.Secret, "")
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.Contains(endpoint, "://") {
			endpoint = fmt.Sprintf("https://%s", endpoint)
		}
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return &S3{client: s3.New(opts)}
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client S3API) *S3 {
	return &S3{client: client}
}

// ReadFull downloads the object at location.
func (s *S3) ReadFull(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := ParseS3Path(location)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%s: %w", location, domain.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get object %q: %w", location, err)
	}
	defer out.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", location, err)
	}
	return data, nil
}

// Exists reports whether the object at location exists.
func (s *S3) Exists(ctx context.Context, location string) (bool, error) {
	bucket, key, err := ParseS3Path(location)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object %q: %w", location, err)
	}
	return true, nil
}

// List returns the locations of all objects under prefix.
func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	bucket, keyPrefix, err := ParseS3Path(prefix)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(prefix, keyPrefix)

	var out []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(keyPrefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, base+aws.ToString(obj.Key))
		}
	}
	return out, nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}

// ParseS3Path extracts bucket and key from an "s3://bucket/path/to/file" URI.
// The Hadoop schemes s3a:// and s3n:// are accepted as aliases.
func ParseS3Path(s3Path string) (bucket, key string, err error) {
	u, err := url.Parse(s3Path)
	if err != nil {
		return "", "", fmt.Errorf("parse S3 path %q: %w", s3Path, err)
	}
	switch u.Scheme {
	case "s3", "s3a", "s3n":
	default:
		return "", "", fmt.Errorf("expected s3:// scheme, got %q in %q", u.Scheme, s3Path)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("empty bucket in S3 path %q", s3Path)
	}
	if key == "" {
		return "", "", fmt.Errorf("empty key in S3 path %q", s3Path)
	}
	return bucket, key, nil
}
