package cache

import (
	"bytes"
	"context"
	"errors"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rotisserie/eris"
)

// S3ColdStore implements ColdStore against any S3-compatible object store
// (AWS S3, or Cloudflare R2 via its S3-compatible API). Region/endpoint/
// credentials come from the standard AWS SDK v2 config chain;
// config.CacheConfig.S3Endpoint overrides the endpoint for R2-style
// deployments.
type S3ColdStore struct {
	client *s3.Client
	bucket string
}

// NewS3ColdStore builds a client for bucket. endpoint may be empty to use
// AWS's default resolution; region is required by the SDK even for
// R2-style endpoints that ignore it.
func NewS3ColdStore(ctx context.Context, bucket, region, endpoint string) (*S3ColdStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, eris.Wrap(err, "cache: load aws config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		}
	})
	return &S3ColdStore{client: client, bucket: bucket}, nil
}

func (s *S3ColdStore) GetObject(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	var notFound *types.NoSuchKey
	if errors.As(err, &notFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: s3 get object")
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: s3 read body")
	}
	return body, true, nil
}

func (s *S3ColdStore) PutObject(ctx context.Context, key string, body []byte) error {
	contentType := "application/json"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return eris.Wrap(err, "cache: s3 put object")
	}
	return nil
}
