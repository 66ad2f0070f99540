package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const s3Scheme = "s3://"

// S3API is the subset of the S3 client used by S3Sink.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Sink stores records as JSON objects under bucket/prefix. The object key
// is the prefix joined with the base name of the local artifact path.
type S3Sink struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Sink returns a sink writing to bucket under prefix.
func NewS3Sink(client S3API, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	var loaders []func(*awsconfig.LoadOptions) error
	if region != "" {
		loaders = append(loaders, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Key returns the object key used for name.
func (s *S3Sink) Key(name string) string {
	return path.Join(s.prefix, filepath.Base(name))
}

// Put implements Sink.
func (s *S3Sink) Put(ctx context.Context, name string, v any) (string, error) {
	ctx, span := tracer.Start(ctx, "artifact.write")
	defer span.End()
	span.SetAttributes(attribute.String("artifact.sink", "s3"))

	data, err := Encode(v)
	if err != nil {
		return "", err
	}
	key := s.Key(name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	location := s3Scheme + s.bucket + "/" + key
	log.Debug().Str("location", location).Msg("artifact written")
	return location, nil
}

// Remove implements Remover. S3 treats deleting a missing key as success.
func (s *S3Sink) Remove(ctx context.Context, name string) error {
	key := s.Key(name)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

// Get implements Source. location is either an "s3://bucket/key" URL or a
// key in the sink's bucket.
func (s *S3Sink) Get(ctx context.Context, location string) ([]byte, error) {
	bucket, key := s.bucket, location
	if rest, ok := strings.CutPrefix(location, s3Scheme); ok {
		var found bool
		bucket, key, found = strings.Cut(rest, "/")
		if !found || bucket == "" || key == "" {
			return nil, fmt.Errorf("invalid S3 location %q", location)
		}
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s: %w", key, err)
	}
	return data, nil
}
