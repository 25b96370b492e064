package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"appshots/internal/config"
)

// ErrNotFound is returned when a stored archive does not exist.
var ErrNotFound = errors.New("export archive not found")

// ZipContentType is the content type of export archives.
const ZipContentType = "application/zip"

// DownloadPrefix is the API route archives are served from, for every backend.
const DownloadPrefix = "/api/export/"

// Object is a stored archive.
type Object struct {
	Key string
	URL string
}

// Uploader stores and serves export archives.
type Uploader interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// New picks S3 when a bucket is configured, otherwise the local export dir.
func New(ctx context.Context, cfg config.Config) (Uploader, error) {
	if cfg.ExportS3Bucket == "" {
		return NewLocal(cfg.ExportDir), nil
	}
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &S3{client: client, bucket: cfg.ExportS3Bucket}, nil
}

func newS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.ExportS3Region),
	}
	if cfg.ExportS3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.ExportS3Endpoint,
					HostnameImmutable: cfg.ExportPathStyle,
					SigningRegion:     cfg.ExportS3Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ExportPathStyle
	}), nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9\x{4e00}-\x{9fff}]`)

// ExportFilename builds "{app}_{suffix}.zip" with every character outside
// ASCII letters, digits and CJK ideographs replaced by '_'.
func ExportFilename(appName, suffix string) string {
	safe := unsafeName.ReplaceAllString(appName, "_")
	if safe == "" {
		safe = "app"
	}
	return fmt.Sprintf("%s_%s.zip", safe, suffix)
}

// SanitizeKey cleans a key and rejects anything that could leave the base dir.
func SanitizeKey(key string) (string, error) {
	key = filepath.ToSlash(filepath.Clean(strings.TrimSpace(key)))
	key = strings.TrimPrefix(key, "/")
	key = strings.TrimPrefix(key, "./")
	if key == "" || key == "." || !filepath.IsLocal(key) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return key, nil
}

// Local stores archives under a base directory.
type Local struct {
	baseDir string
}

// NewLocal returns a Local uploader rooted at dir.
func NewLocal(dir string) *Local {
	if dir == "" {
		dir = "./data/exports"
	}
	return &Local{baseDir: dir}
}

func (l *Local) Put(_ context.Context, key string, body []byte, _ string) (Object, error) {
	key, err := SanitizeKey(key)
	if err != nil {
		return Object{}, err
	}
	path := filepath.Join(l.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Object{}, fmt.Errorf("create dirs: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return Object{}, fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return Object{}, fmt.Errorf("rename file: %w", err)
	}
	return Object{Key: key, URL: DownloadPrefix + key}, nil
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	key, err := SanitizeKey(key)
	if err != nil {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(l.baseDir, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return f, nil
}

// S3 stores archives in a bucket.
type S3 struct {
	client *s3.Client
	bucket string
}

func (s *S3) Put(ctx context.Context, key string, body []byte, contentType string) (Object, error) {
	key, err := SanitizeKey(key)
	if err != nil {
		return Object{}, err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Object{}, fmt.Errorf("put object: %w", err)
	}
	return Object{Key: key, URL: DownloadPrefix + key}, nil
}

func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := SanitizeKey(key)
	if err != nil {
		return nil, ErrNotFound
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	var missing *types.NoSuchKey
	if errors.As(err, &missing) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}
