// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package evidence stores the frame that triggered an event in S3
// compatible object storage, so operators can review the image behind
// every alert.
package evidence

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/models"
)

// objectAPI is the slice of the MinIO client the uploader uses.
type objectAPI interface {
	PutObject(ctx context.Context, bucket, name string, reader *bytes.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type minioAdapter struct {
	client *minio.Client
}

func (a minioAdapter) PutObject(ctx context.Context, bucket, name string, reader *bytes.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.client.PutObject(ctx, bucket, name, reader, size, opts)
}

// Uploader writes triggering frames to a bucket.
type Uploader struct {
	api    objectAPI
	bucket string
}

// Options configures the evidence uploader.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, opts Options) (*Uploader, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}

	mkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.MakeBucket(mkCtx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := client.BucketExists(mkCtx, opts.Bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("ensuring bucket %s: %w", opts.Bucket, err)
		}
	}

	logging.Info().Str("endpoint", opts.Endpoint).Str("bucket", opts.Bucket).
		Msg("evidence store connected")
	return &Uploader{api: minioAdapter{client}, bucket: opts.Bucket}, nil
}

// Upload stores the frame under <stream_id>/<event_id>.<ext> and records
// the object name in the event details.
func (u *Uploader) Upload(ctx context.Context, frame models.Frame, ev *models.Event) error {
	if len(frame.Data) == 0 {
		return nil
	}

	ext := frame.Format
	if ext == "" {
		ext = "jpeg"
	}
	name := fmt.Sprintf("%s/%s.%s", frame.StreamID, ev.ID, ext)

	_, err := u.api.PutObject(ctx, u.bucket, name,
		bytes.NewReader(frame.Data), int64(len(frame.Data)),
		minio.PutObjectOptions{ContentType: "image/" + ext})
	if err != nil {
		return fmt.Errorf("uploading evidence %s: %w", name, err)
	}

	if ev.Details == nil {
		ev.Details = make(map[string]any)
	}
	ev.Details["evidence_object"] = name
	return nil
}
