package storage

import (
	"bytes"
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Client builds a client for AWS or any S3 compatible endpoint such as MinIO.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Store keeps blobs as objects of a single bucket, keyed by stored name.
type S3Store struct {
	client S3API
	bucket string
	log    *slog.Logger
}

func NewS3Store(client S3API, bucket string, log *slog.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, log: log}
}

// Put buffers the body: the caller already bounds it, and a seekable body lets the SDK sign the payload.
func (s *S3Store) Put(ctx context.Context, name string, r io.Reader, contentType string) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return int64(len(data)), fmt.Errorf("read %s: %w", name, err)
	}
	if contentType == "" {
		contentType = contentTypeOf(name)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return int64(len(data)), fmt.Errorf("put object %s: %w", name, err)
	}
	return int64(len(data)), nil
}

func (s *S3Store) Open(ctx context.Context, name string) (io.ReadCloser, contract.BlobInfo, error) {
	if err := checkName(name); err != nil {
		return nil, contract.BlobInfo{}, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	var noSuchKey *types.NoSuchKey
	if goerrors.As(err, &noSuchKey) {
		return nil, contract.BlobInfo{}, fmt.Errorf("%w: %s", errors.ErrBlobNotFound, name)
	}
	if err != nil {
		return nil, contract.BlobInfo{}, fmt.Errorf("get object %s: %w", name, err)
	}
	return out.Body, contract.BlobInfo{
		Name:        name,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		ModTime:     aws.ToTime(out.LastModified),
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", name, err)
	}
	return nil
}
