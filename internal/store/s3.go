package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ObjectAPI is the part of *s3.Client the S3 medium needs
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Medium keeps a document as a single object. PutObject replaces objects
// atomically so no temp object is needed.
type S3Medium struct {
	client ObjectAPI
	bucket string
	key    string
}

func NewS3Medium(client ObjectAPI, bucket, key string) *S3Medium {
	return &S3Medium{
		client: client,
		bucket: bucket,
		key:    key,
	}
}

func (m *S3Medium) Name() string {
	return "s3://" + m.bucket + "/" + m.key
}

func (m *S3Medium) Read(ctx context.Context) ([]byte, error) {
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key),
	})
	if err != nil {
		if isMissingObject(err) {
			return nil, ErrNotExist
		}

		return nil, fmt.Errorf("failed to get %s, %w", m.Name(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s, %w", m.Name(), err)
	}

	return data, nil
}

func (m *S3Medium) Write(ctx context.Context, data []byte) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
		CacheControl:  aws.String("no-store"),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s, %w", m.Name(), err)
	}

	return nil
}

func isMissingObject(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}

	return false
}
