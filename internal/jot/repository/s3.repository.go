package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"jotter/config"
	"jotter/internal/jot/model"
	"jotter/pkg/logger"
	"jotter/store"
)

// S3API is the subset of the S3 client the store needs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps each jot as one object. PutObject replaces an object atomically.
type S3Store struct {
	Client S3API
	Bucket string
	Prefix string
}

func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			// Self-hosted endpoints (minio and friends) want path-style addressing.
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{Client: client, Bucket: cfg.Bucket, Prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (s *S3Store) key(token string) string {
	if s.Prefix == "" {
		return store.FileName(token)
	}
	return path.Join(s.Prefix, store.FileName(token))
}

func (s *S3Store) listPrefix() string {
	if s.Prefix == "" {
		return "jot_"
	}
	return s.Prefix + "/jot_"
}

func (s *S3Store) Read(ctx context.Context, token string) (string, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(token)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("get jot: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read jot body: %w", err)
	}
	return string(data), nil
}

func (s *S3Store) Write(ctx context.Context, token, content string) error {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.key(token)),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		logger.Sugar.Errorf("Failed to put jot object: %v", err)
		return fmt.Errorf("put jot: %w", err)
	}
	return nil
}

func (s *S3Store) LastModified(ctx context.Context, token string) (model.Version, error) {
	out, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(token)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return model.Version{}, model.ErrNotFound
		}
		return model.Version{}, fmt.Errorf("head jot: %w", err)
	}
	// LastModified has one-second resolution, the ETag catches same-second edits.
	return model.Version{
		ModTime: aws.ToTime(out.LastModified),
		Size:    aws.ToInt64(out.ContentLength),
		Tag:     aws.ToString(out.ETag),
	}, nil
}

// CreateIfAbsent relies on a conditional put (If-None-Match: *).
func (s *S3Store) CreateIfAbsent(ctx context.Context, token, seed string) (bool, error) {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.key(token)),
		Body:        strings.NewReader(seed),
		ContentType: aws.String("text/plain; charset=utf-8"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return false, nil
		}
		return false, fmt.Errorf("create jot: %w", err)
	}
	return true, nil
}

func (s *S3Store) Exists(ctx context.Context, token string) (bool, error) {
	_, err := s.LastModified(ctx, token)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *S3Store) Empty(ctx context.Context) (bool, error) {
	out, err := s.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.Bucket),
		Prefix:  aws.String(s.listPrefix()),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("list jots: %w", err)
	}
	return len(out.Contents) == 0, nil
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}
