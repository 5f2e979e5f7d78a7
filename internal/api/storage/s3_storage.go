package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-identity-authority/config"
)

// Package-level seam so tests can observe how the AWS config is assembled.
var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// PresignedUpload is a time-limited PUT target the client uploads to directly.
type PresignedUpload struct {
	URL       string
	Method    string
	Key       string
	ExpiresAt time.Time
}

// Uploader hands out object keys and upload URLs for user media.
type Uploader interface {
	ProfileImageKey(userID uuid.UUID, fileName string) string
	PresignUpload(ctx context.Context, key, contentType string) (*PresignedUpload, error)
}

var _ Uploader = (*S3Storage)(nil)

type S3Storage struct {
	presign *s3.PresignClient
	bucket  string
	appName string
	ttl     time.Duration
	logger  *slog.Logger
}

func NewS3Storage(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &S3Storage{
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		appName: cfg.AppName,
		ttl:     ttl,
		logger:  logger,
	}, nil
}

// ProfileImageKey namespaces uploads per application and user; the random
// prefix keeps re-uploads of the same file name apart.
func (s *S3Storage) ProfileImageKey(userID uuid.UUID, fileName string) string {
	name := strings.ReplaceAll(path.Base(fileName), " ", "_")
	return fmt.Sprintf("%s/users/%s/%s_%s", s.appName, userID, uuid.NewString(), name)
}

func (s *S3Storage) PresignUpload(ctx context.Context, key, contentType string) (*PresignedUpload, error) {
	ctx, span := otel.Tracer("S3Storage").Start(ctx, "PresignUpload", trace.WithAttributes(
		attribute.String("s3.bucket", s.bucket),
		attribute.String("s3.key", key),
	))
	defer span.End()

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to presign upload", slog.String("key", key), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "presign failed")
		return nil, fmt.Errorf("error presigning upload: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return &PresignedUpload{
		URL:       req.URL,
		Method:    req.Method,
		Key:       key,
		ExpiresAt: time.Now().Add(s.ttl),
	}, nil
}
