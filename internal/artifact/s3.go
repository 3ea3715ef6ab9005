// internal/artifact/s3.go
// Package artifact provides S3-compatible storage implementation for evidence
// artifacts. The registry stores only hashes; the artifact bytes themselves
// are uploaded directly to object storage through presigned URLs.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client wraps the AWS S3 client for evidence artifact operations.
// It provides methods for generating presigned upload URLs and verifying
// uploaded objects.
type S3Client struct {
	client *s3.Client // AWS S3 client
	bucket string     // S3 bucket name for artifact storage
}

// NewS3Client creates a new S3 client for artifact operations.
// It supports both AWS S3 and S3-compatible services like MinIO.
// Parameters:
//   - endpoint: S3 service endpoint URL
//   - region: AWS region (or equivalent for S3-compatible services)
//   - bucket: S3 bucket name for artifact storage
//   - accessKey: Access key for authentication
//   - secretKey: Secret key for authentication
// Returns:
//   - *S3Client: Initialized S3 client
//   - error: Any error that occurred during initialization
func NewS3Client(endpoint, region, bucket, accessKey, secretKey string) (*S3Client, error) {
	// Load AWS configuration with custom endpoint and credentials
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		// Configure static credentials
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
				}, nil
			})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with path-style addressing for compatibility
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for MinIO and other S3-compatible services
	})

	return &S3Client{
		client: client,
		bucket: bucket,
	}, nil
}

// ObjectKey builds the storage key for an evidence artifact. Objects are
// grouped under their complaint so bucket listing by complaint is cheap.
func ObjectKey(complaintID, sha256hex, filename string) string {
	// Filenames are advisory; strip path separators so the key stays flat.
	name := strings.ReplaceAll(filename, "/", "_")
	return fmt.Sprintf("complaints/%s/%s/%s", complaintID, sha256hex, name)
}

// GenerateUploadURL generates a presigned URL for uploading an artifact.
// This allows clients to upload directly to S3 without streaming through the
// audit service.
// Parameters:
//   - ctx: Context for the operation
//   - key: S3 object key where the file will be stored
//   - expires: Duration until the presigned URL expires
// Returns:
//   - string: Presigned URL for uploading
//   - error: Any error that occurred during URL generation
func (s *S3Client) GenerateUploadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	// Create a presign client from the S3 client
	presignClient := s3.NewPresignClient(s.client)

	// Generate a presigned PUT URL for direct client upload
	presignResult, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket), // Target S3 bucket
		Key:    aws.String(key),      // Object key in the bucket
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires // URL expiration time
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignResult.URL, nil
}

// VerifyObject verifies that an uploaded artifact exists and reports its size.
// Checksum verification against the registered proof hash happens out of band
// once storage-side checksums are wired up.
// Parameters:
//   - ctx: Context for the operation
//   - key: S3 object key to verify
// Returns:
//   - bool: True if the object exists, false if the key was never uploaded
//   - int64: Object size in bytes
//   - error: Any transport or storage error other than a missing key
func (s *S3Client) VerifyObject(ctx context.Context, key string) (bool, int64, error) {
	// Get object metadata using HEAD request
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket), // Target S3 bucket
		Key:    aws.String(key),      // Object key in the bucket
	})
	if err != nil {
		// A missing key is a normal outcome, not a storage failure
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to get object metadata: %w", err)
	}

	return true, *result.ContentLength, nil
}
