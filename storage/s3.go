package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/devlog/devblog/config"
)

// ErrNoSuchKey is returned when an object is absent from the bucket. Callers
// on best-effort cleanup paths treat it as already-done and move on.
var ErrNoSuchKey = errors.New("storage: no such key")

// ObjectStore abstracts the handful of bucket operations the image lifecycle
// needs, so tests can run against an in-memory fake.
type ObjectStore interface {
	PresignPut(key, contentType string, expires time.Duration) (string, error)
	Get(key string) (body []byte, contentType string, err error)
	Put(key string, body []byte, contentType string) error
	Copy(srcKey, dstKey string) error
	Delete(key string) error
}

// S3Store is an ObjectStore backed by a single S3 bucket. The underlying
// client is stateless and safe for concurrent use across requests.
type S3Store struct {
	client *s3.S3
	bucket string
}

// NewS3Store builds an S3-backed store from application configuration.
func NewS3Store(cfg config.AppConfig) (*S3Store, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.AWSRegion)
	if cfg.AWSAccessKeyID != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create AWS session: %w", err)
	}
	return &S3Store{client: s3.New(sess), bucket: cfg.S3Bucket}, nil
}

// PresignPut returns a time-limited URL granting one PUT of the given key and
// content type without exposing service credentials.
func (s *S3Store) PresignPut(key, contentType string, expires time.Duration) (string, error) {
	req, _ := s.client.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	url, err := req.Presign(expires)
	if err != nil {
		return "", fmt.Errorf("presign put for %s: %w", key, err)
	}
	return url, nil
}

// Get downloads an object and reports its stored content type.
func (s *S3Store) Get(key string) ([]byte, string, error) {
	out, err := s.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", mapS3Err(err, key)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read object %s: %w", key, err)
	}
	return body, aws.StringValue(out.ContentType), nil
}

// Put uploads an object with the given content type.
func (s *S3Store) Put(key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return mapS3Err(err, key)
	}
	return nil
}

// Copy duplicates an object within the bucket.
func (s *S3Store) Copy(srcKey, dstKey string) error {
	_, err := s.client.CopyObject(&s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + srcKey),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		return mapS3Err(err, srcKey)
	}
	return nil
}

// Delete removes an object. Deleting a missing key is not an error on S3,
// but HeadObject-less flows may still surface NoSuchKey from other calls.
func (s *S3Store) Delete(key string) error {
	_, err := s.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapS3Err(err, key)
	}
	return nil
}

func mapS3Err(err error, key string) error {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return fmt.Errorf("%w: %s", ErrNoSuchKey, key)
		}
	}
	return fmt.Errorf("s3 operation on %s: %w", key, err)
}
