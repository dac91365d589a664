// Package artifacts stores rendered letters in S3 compatible object storage or a local directory
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/logger"
	"arledger/internal/services/dunning/domain"
)

const s3Scheme = "s3://"

// S3Options configures the S3 store
type S3Options struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// s3API is the slice of the s3 client the store calls
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3 implements domain.ArtifactStore on a bucket, refs look like s3://bucket/key
type S3 struct {
	client s3API
	bucket string
	log    *logger.Logger
}

var _ domain.ArtifactStore = (*S3)(nil)

// NewS3 builds a client with static credentials, Endpoint targets MinIO or other compatible servers
func NewS3(ctx context.Context, o S3Options) (*S3, error) {
	if o.Bucket == "" {
		return nil, perr.InvalidArgf("artifacts: bucket is required")
	}
	if o.Region == "" {
		o.Region = "eu-central-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "artifacts: aws config")
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		so.UsePathStyle = o.UsePathStyle
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}
	})
	return &S3{client: client, bucket: o.Bucket, log: logger.Named("artifacts")}, nil
}

// EnsureBucket creates the bucket when it does not exist yet
func (s *S3) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "artifacts: head bucket %s", s.bucket)
	}
	s.log.Info().Str("bucket", s.bucket).Msg("creating artifact bucket")
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "artifacts: create bucket %s", s.bucket)
	}
	return nil
}

// Put uploads body under key and returns its ref
func (s *S3) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", perr.InvalidArgf("artifacts: empty key")
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnavailable, "artifacts: put %s", key)
	}
	return s3Scheme + s.bucket + "/" + key, nil
}

// Get downloads the object behind ref
func (s *S3) Get(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, perr.NotFoundf("artifact %s not found", ref)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "artifacts: get %s", ref)
	}
	defer func() { _ = out.Body.Close() }()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "artifacts: read %s", ref)
	}
	return b, nil
}

func splitRef(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, s3Scheme)
	if !ok {
		return "", "", perr.InvalidArgf("artifacts: ref %q is not an s3 ref", ref)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", perr.InvalidArgf("artifacts: ref %q has no key", ref)
	}
	return bucket, key, nil
}
