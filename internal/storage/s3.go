// Package storage puts snapshot images in S3-compatible object storage and
// gets them back for processing. Keys follow
// <prefix>/user-<id>/<timestamp>.<ext> so a bucket listing groups by owner.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/olliezdai13/SmartFridge/internal/common"
)

// ObjectStore is what the upload handler and the pipeline depend on.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, string, error)
}

type s3Store struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

func NewS3Store(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (ObjectStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Bucket == "" {
		return nil, common.ConfigurationError("S3_BUCKET is not set", nil)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, common.ConfigurationError("load aws config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			// MinIO and friends
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Store{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func (s *s3Store) Put(ctx context.Context, key string, contentType string, body []byte) error {
	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("storage.put.failed", "key", key, "error", err)
		return classify(err, "put "+key)
	}
	s.logger.Info("storage.put.ok", "key", key, "bytes", len(body), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *s3Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	start := time.Now()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("storage.get.failed", "key", key, "error", err)
		return nil, "", classify(err, "get "+key)
	}
	defer func() {
		if cerr := out.Body.Close(); cerr != nil {
			s.logger.Warn("storage.get.body_close_error", "key", key, "error", cerr)
		}
	}()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", common.TransientError("read object body: "+key, err)
	}
	contentType := ""
	if out.ContentType != nil {
		contentType = *out.ContentType
	}
	s.logger.Info("storage.get.ok", "key", key, "bytes", len(body), "elapsed_ms", time.Since(start).Milliseconds())
	return body, contentType, nil
}

// classify folds S3 failures into the retry taxonomy: credential and bucket
// problems are deployment mistakes, everything else is worth retrying. A
// missing object stays transient so a commit raced by an upload is retried.
func classify(err error, op string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
		return common.ConfigurationError("bucket does not exist: "+op, err)
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return common.ConfigurationError("object storage rejected credentials: "+op, err)
		case http.StatusNotFound:
			return common.TransientError("object not found: "+op, err)
		}
	}
	return common.TransientError("object storage error: "+op, err)
}

// BuildKey forms the canonical object key for a user's snapshot.
func BuildKey(basePrefix string, userID uuid.UUID, filename string) string {
	prefix := strings.Trim(basePrefix, "/")
	if prefix == "" {
		prefix = "snapshots"
	}
	return path.Join(prefix, "user-"+userID.String(), filename)
}

// UniqueFilename stamps an upload with time and a short random suffix,
// preserving the original extension.
func UniqueFilename(original string, now time.Time) string {
	ext := strings.ToLower(path.Ext(original))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s-%s%s", now.UTC().Format("20060102T150405"), uuid.NewString()[:8], ext)
}
