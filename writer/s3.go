package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "dealflow/config"
	"dealflow/logger"
)

// S3Uploader mirrors exported artifacts to an S3 bucket. Uploads happen
// after the local files are written, one object per artifact.
type S3Uploader struct {
	config *appconfig.Config
	client *s3.Client
	log    *logger.Log
}

// NewS3Uploader configures the AWS SDK and validates that credentials are
// available before any upload is attempted.
func NewS3Uploader(cfg *appconfig.Config) (*S3Uploader, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Storage.S3.Region)}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("s3_uploader").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	log.WithComponent("s3_uploader").WithFields(logger.Fields{
		"region": cfg.Storage.S3.Region,
		"bucket": cfg.Storage.S3.Bucket,
	}).Debug("s3 uploader initialized")

	return &S3Uploader{
		config: cfg,
		client: client,
		log:    log,
	}, nil
}

// ExpandKeyTemplate substitutes the {year}, {month}, {day} and {hour}
// placeholders in a partition template using the given instant.
func ExpandKeyTemplate(template string, t time.Time) string {
	key := strings.ReplaceAll(template, "{year}", fmt.Sprintf("%04d", t.Year()))
	key = strings.ReplaceAll(key, "{month}", fmt.Sprintf("%02d", t.Month()))
	key = strings.ReplaceAll(key, "{day}", fmt.Sprintf("%02d", t.Day()))
	key = strings.ReplaceAll(key, "{hour}", fmt.Sprintf("%02d", t.Hour()))
	return key
}

// ObjectKey builds the bucket key for one artifact file.
func (u *S3Uploader) ObjectKey(filename string, t time.Time) string {
	prefix := ExpandKeyTemplate(u.config.Storage.S3.KeyTemplate, t)
	return filepath.ToSlash(filepath.Join(prefix, filename))
}

// UploadFile puts one local artifact into the bucket and returns the
// object key it was stored under.
func (u *S3Uploader) UploadFile(ctx context.Context, path string, now time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	key := u.ObjectKey(filepath.Base(path), now)

	log := u.log.WithComponent("s3_uploader").WithFields(logger.Fields{
		"operation": "upload_file",
		"s3_key":    key,
		"data_size": len(data),
	})
	log.Info("uploading to S3")

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeFor(path)),
		Metadata: map[string]string{
			"dealflow-version": u.config.Dealflow.Version,
		},
	}

	uploadCtx := context.WithoutCancel(ctx)
	if _, err := u.client.PutObject(uploadCtx, input); err != nil {
		return "", fmt.Errorf("failed to upload to S3 bucket %s: %w", u.config.Storage.S3.Bucket, err)
	}

	logger.IncrementS3Upload(int64(len(data)))
	log.Info("successfully uploaded to S3")
	return key, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
