// Package publish uploads compiled artifacts to S3.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/oriys/lambdadev/internal/logging"
)

// PutObjectAPI is the part of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Target is an upload destination parsed from s3://bucket/prefix.
type Target struct {
	Bucket string
	Prefix string
}

// ParseTarget parses an s3://bucket[/prefix] URI.
func ParseTarget(uri string) (Target, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Target{}, fmt.Errorf("parse publish target: %w", err)
	}
	if u.Scheme != "s3" {
		return Target{}, fmt.Errorf("publish target must use the s3:// scheme: %q", uri)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("publish target has no bucket: %q", uri)
	}
	return Target{Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
}

// Key returns the object key for a file name.
func (t Target) Key(name string) string {
	if t.Prefix == "" {
		return name
	}
	return path.Join(t.Prefix, name)
}

func (t Target) String() string {
	return "s3://" + t.Bucket + "/" + t.Prefix
}

// Publisher uploads artifact files.
type Publisher struct {
	client PutObjectAPI
}

// New creates a Publisher over client.
func New(client PutObjectAPI) *Publisher {
	return &Publisher{client: client}
}

// Options configures the S3 client built by NewFromEnv.
type Options struct {
	// Region overrides the region from the environment and shared config.
	Region string

	// Endpoint points the client at an S3-compatible server (MinIO,
	// LocalStack) and switches to path-style addressing.
	Endpoint string

	// Static credentials; when empty the default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// NewFromEnv creates a Publisher using the default AWS configuration chain
// adjusted by opts.
func NewFromEnv(ctx context.Context, opts Options) (*Publisher, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client), nil
}

// Publish uploads each file under target, keyed by its base name, and
// returns the keys written. It stops at the first failed upload.
func (p *Publisher) Publish(ctx context.Context, target Target, files []string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return keys, fmt.Errorf("read %s: %w", file, err)
		}
		key := target.Key(filepath.Base(file))
		_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(target.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/javascript"),
		})
		if err != nil {
			return keys, fmt.Errorf("upload %s to %s: %w", file, target, err)
		}
		logging.Op().Info("artifact published", "file", file, "bucket", target.Bucket, "key", key)
		keys = append(keys, key)
	}
	return keys, nil
}
