package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// PutObjectAPI is the subset of the S3 client used by S3Uploader.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ PutObjectAPI = (*s3.Client)(nil)

// S3Options configures the client behind an S3Uploader.
type S3Options struct {
	AccessKey string
	SecretKey string
	Region    string

	// Endpoint overrides the AWS endpoint for S3-compatible services such as
	// MinIO or LocalStack. Path-style addressing is used when it is set.
	Endpoint string
}

// S3Uploader uploads objects to an S3 bucket with a public-read canned ACL.
type S3Uploader struct {
	client PutObjectAPI
	region string
}

// loadConfig is swapped in tests.
var loadConfig = config.LoadDefaultConfig

// NewS3Uploader creates an S3Uploader authenticated with the static key pair
// in opts. No other credential source is consulted.
func NewS3Uploader(ctx context.Context, opts S3Options) (*S3Uploader, error) {
	cfg, err := loadConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3UploaderWithClient(client, opts.Region), nil
}

// NewS3UploaderWithClient wraps an existing client. region is only used to
// derive object URLs.
func NewS3UploaderWithClient(client PutObjectAPI, region string) *S3Uploader {
	return &S3Uploader{client: client, region: region}
}

// Upload issues a single PutObject for req. The object is readable by
// anyone holding its URL.
func (u *S3Uploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(req.Bucket),
		Key:    aws.String(req.Key),
		Body:   req.Content,
		ACL:    types.ObjectCannedACLPublicRead,
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}
	if req.ContentLength > 0 {
		input.ContentLength = aws.Int64(req.ContentLength)
	}

	out, err := u.client.PutObject(ctx, input)
	if err != nil {
		return nil, &Error{Op: "put", Bucket: req.Bucket, Key: req.Key, Err: err}
	}

	return &UploadResult{
		Key:  req.Key,
		URL:  ObjectURL(req.Bucket, u.region, req.Key),
		ETag: aws.ToString(out.ETag),
	}, nil
}
