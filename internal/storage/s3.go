// Package storage uploads finalized session recordings to S3 or any
// S3-compatible object store (MinIO, R2, etc.).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// ErrDisabled is returned by a store that was configured without a bucket.
var ErrDisabled = errors.New("storage: recording store disabled")

// S3Client abstracts the S3 API operations used by S3Store.
// The *s3.Client type satisfies this interface.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Config holds S3 recording store configuration.
type Config struct {
	Enabled         bool
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // non-empty for S3-compatible stores; enables path-style addressing
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store writes recordings under "<prefix>/<sessionID>.wav".
type S3Store struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3 creates a store around a pre-configured client.
func NewS3(client S3Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// New builds an S3 client from cfg. A disabled config yields a nil store,
// which callers treat as "recordings are not uploaded".
func New(cfg Config) *S3Store {
	if !cfg.Enabled || cfg.Bucket == "" {
		log.Info().Msg("Recording upload disabled")
		return nil
	}

	awsCfg := aws.Config{Region: cfg.Region}
	if cfg.AccessKeyID != "" {
		creds := aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Source:          "environment",
		}
		awsCfg.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) { return creds, nil },
		))
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Info().
		Str("bucket", cfg.Bucket).
		Str("prefix", cfg.Prefix).
		Str("region", cfg.Region).
		Str("endpoint", cfg.Endpoint).
		Msg("Recording store initialized")

	return NewS3(client, cfg.Bucket, cfg.Prefix)
}

// Bucket returns the target bucket.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// Key returns the object key for a session recording.
func (s *S3Store) Key(sessionID string) string {
	name := sessionID + ".wav"
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// PutRecording uploads a WAV recording and returns its object key. A
// server-side fault is retried once.
func (s *S3Store) PutRecording(ctx context.Context, sessionID string, wav []byte) (string, error) {
	if s == nil {
		return "", ErrDisabled
	}
	key := s.Key(sessionID)

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(wav),
			ContentLength: aws.Int64(int64(len(wav))),
			ContentType:   aws.String("audio/wav"),
		})
		if err == nil || !isServerFault(err) || ctx.Err() != nil {
			break
		}
		log.Warn().Err(err).Str("key", key).Msg("Recording upload failed, retrying")
	}
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	return key, nil
}

// Exists reports whether a session recording has been stored.
func (s *S3Store) Exists(ctx context.Context, sessionID string) (bool, error) {
	if s == nil {
		return false, ErrDisabled
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(sessionID)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func isServerFault(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultServer
}
