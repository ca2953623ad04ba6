package sink

import (
	"bytes"
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Compile-time check: S3Sink implements Sink.
var _ Sink = (*S3Sink)(nil)

// S3Sink uploads to S3 or an S3-compatible store. Requests use path-style
// addressing against the target endpoint so that MinIO and similar services
// work without DNS bucket names.
type S3Sink struct {
	region    string
	keyID     string
	secretKey string
}

// NewS3 creates an S3Sink with static credentials. Empty keys send
// anonymous requests.
func NewS3(region, keyID, secretKey string) *S3Sink {
	if region == "" {
		region = "us-east-1"
	}
	return &S3Sink{region: region, keyID: keyID, secretKey: secretKey}
}

// Put creates the bucket if needed and writes the object.
func (s *S3Sink) Put(ctx context.Context, target Target, data []byte, contentType string) error {
	if err := target.Validate(); err != nil {
		return err
	}

	client := s.client(target.Endpoint)

	if err := s.ensureBucket(ctx, client, target.Container); err != nil {
		return &Error{Provider: ProviderS3, Op: "create bucket", Target: target, Err: err}
	}

	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(target.Container),
		Key:         aws.String(target.Object),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return &Error{Provider: ProviderS3, Op: "put object", Target: target, Err: err}
	}
	return nil
}

func (s *S3Sink) client(endpoint string) *s3.Client {
	opts := s3.Options{
		Region:       s.region,
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	}
	if s.keyID != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(s.keyID, s.secretKey, "")
	}
	return s3.New(opts)
}

func (s *S3Sink) ensureBucket(ctx context.Context, client *s3.Client, bucket string) error {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	_, err := client.CreateBucket(ctx, input)
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return err
	}
	return nil
}
