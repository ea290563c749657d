package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"stemforge/internal/config"
	"stemforge/internal/logging"
	"stemforge/internal/stage"
)

// objectPutter is the subset of the S3 client used for uploads.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads archives to an S3-compatible bucket.
type S3Publisher struct {
	client objectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3 builds an S3 publisher. Static keys are used when configured,
// otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg config.S3, logger *slog.Logger) (*S3Publisher, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket required")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
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
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newS3WithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3WithClient(client objectPutter, bucket, prefix string, logger *slog.Logger) *S3Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &S3Publisher{
		client: client,
		bucket: strings.TrimSpace(bucket),
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
		logger: logger,
	}
}

// Key returns the object key used for an archive.
func (p *S3Publisher) Key(archivePath string) string {
	name := filepath.Base(archivePath)
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Publish uploads archivePath and returns its s3:// URI.
func (p *S3Publisher) Publish(ctx context.Context, archivePath string) (string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat archive: %w", err)
	}

	key := p.Key(archivePath)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	dest := fmt.Sprintf("s3://%s/%s", p.bucket, key)
	logging.WithContext(ctx, p.logger).Info("archive uploaded",
		logging.String("destination", dest),
		logging.Int64("bytes", info.Size()),
		logging.String(logging.FieldEventType, "s3_upload_complete"),
	)
	return dest, nil
}

// HealthCheck reports the configured bucket.
func (p *S3Publisher) HealthCheck(context.Context) stage.Health {
	if p.bucket == "" {
		return stage.Unhealthy(stage.Publish, "bucket not configured")
	}
	return stage.Health{Name: stage.Publish, Ready: true, Detail: "s3://" + p.bucket}
}
