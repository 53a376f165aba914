package service

import (
	a "bitwise74/kidney-api/aws"
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minMultipartSize = 12 << 20

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// ObjectUploader is the part of the s3 upload manager the keeper uses
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// UploadKeeper stores uploaded images under a random name and optionally
// mirrors them to a bucket
type UploadKeeper struct {
	dir string

	uploader ObjectUploader
	bucket   string
	prefix   string
}

func NewUploadKeeper(dir string) (*UploadKeeper, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory, %w", err)
	}

	return &UploadKeeper{dir: dir}, nil
}

// WithMirror makes every saved file also go to bucket under prefix
func (k *UploadKeeper) WithMirror(u ObjectUploader, bucket, prefix string) *UploadKeeper {
	k.uploader = u
	k.bucket = bucket
	k.prefix = prefix
	return k
}

// NewS3Uploader builds the upload manager used for mirroring. Large files
// are sent in parts.
func NewS3Uploader(c *a.S3Client) *manager.Uploader {
	return manager.NewUploader(c.C, func(u *manager.Uploader) {
		u.Concurrency = 5
		u.PartSize = 6 << 20
	})
}

func (k *UploadKeeper) Dir() string {
	return k.dir
}

// Save writes data as <uuid><ext> where ext comes from the original file
// name, and returns the new name. Mirroring failures are logged only.
func (k *UploadKeeper) Save(ctx context.Context, originalName string, data []byte) (string, error) {
	ext := filepath.Ext(originalName)
	if !safeExt.MatchString(ext) {
		ext = ".bin"
	}

	name := uuid.NewString() + ext
	p := filepath.Join(k.dir, name)

	if err := os.WriteFile(p, data, 0o640); err != nil {
		return "", fmt.Errorf("failed to write upload, %w", err)
	}

	zap.L().Debug("Upload saved", zap.String("path", p), zap.Int("size", len(data)))

	if k.uploader != nil {
		if err := k.mirror(ctx, name, data); err != nil {
			zap.L().Warn("Failed to mirror upload", zap.String("name", name), zap.Error(err))
		}
	}

	return name, nil
}

func (k *UploadKeeper) mirror(ctx context.Context, name string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	var opts []func(*manager.Uploader)
	if len(data) <= minMultipartSize {
		opts = append(opts, func(u *manager.Uploader) {
			u.Concurrency = 1
		})
	}

	_, err := k.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(k.bucket),
		Key:           aws.String(path.Join(k.prefix, name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mimetype.Detect(data).String()),
		CacheControl:  aws.String("private, max-age=0"),
	}, opts...)

	return err
}

// Prune deletes saved files last modified before cutoff and reports how
// many were removed
func (k *UploadKeeper) Prune(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(k.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list uploads, %w", err)
	}

	removed := 0

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(k.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("Failed to remove old upload", zap.String("name", e.Name()), zap.Error(err))
			continue
		}

		removed++
	}

	return removed, nil
}
