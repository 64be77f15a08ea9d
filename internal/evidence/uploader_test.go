// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package evidence

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/wardsight/wardsight/internal/models"
)

type fakeObjectAPI struct {
	err    error
	bucket string
	name   string
	data   []byte
	ctype  string
	puts   int
}

func (f *fakeObjectAPI) PutObject(ctx context.Context, bucket, name string, reader *bytes.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.puts++
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	f.bucket = bucket
	f.name = name
	f.ctype = opts.ContentType
	data, _ := io.ReadAll(reader)
	f.data = data
	return minio.UploadInfo{Bucket: bucket, Key: name, Size: size}, nil
}

func TestUploadRecordsObjectName(t *testing.T) {
	api := &fakeObjectAPI{}
	u := &Uploader{api: api, bucket: "wardsight-evidence"}

	frame := models.Frame{
		StreamID:  "cam-1",
		Data:      []byte{0xff, 0xd8, 0xff},
		Format:    "jpeg",
		Timestamp: time.Unix(1700000000, 0),
	}
	ev := &models.Event{ID: "ev-42", SessionID: "cam-1", Name: "人员跌倒"}

	if err := u.Upload(context.Background(), frame, ev); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if api.bucket != "wardsight-evidence" || api.name != "cam-1/ev-42.jpeg" {
		t.Errorf("stored as %s/%s", api.bucket, api.name)
	}
	if api.ctype != "image/jpeg" {
		t.Errorf("content type = %s", api.ctype)
	}
	if !bytes.Equal(api.data, frame.Data) {
		t.Error("uploaded bytes differ from frame data")
	}
	if got := ev.Details["evidence_object"]; got != "cam-1/ev-42.jpeg" {
		t.Errorf("evidence_object = %v", got)
	}
}

func TestUploadSkipsEmptyFrame(t *testing.T) {
	api := &fakeObjectAPI{}
	u := &Uploader{api: api, bucket: "b"}

	ev := &models.Event{ID: "ev-1"}
	if err := u.Upload(context.Background(), models.Frame{StreamID: "cam-1"}, ev); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if api.puts != 0 {
		t.Error("empty frame was uploaded")
	}
	if _, ok := ev.Details["evidence_object"]; ok {
		t.Error("evidence_object set without upload")
	}
}

func TestUploadErrorLeavesDetailsUntouched(t *testing.T) {
	api := &fakeObjectAPI{err: errors.New("store down")}
	u := &Uploader{api: api, bucket: "b"}

	ev := &models.Event{ID: "ev-1"}
	err := u.Upload(context.Background(), models.Frame{StreamID: "cam-1", Data: []byte{1}}, ev)
	if err == nil {
		t.Fatal("expected upload error")
	}
	if _, ok := ev.Details["evidence_object"]; ok {
		t.Error("evidence_object set despite failure")
	}
}

func TestUploadDefaultsFormat(t *testing.T) {
	api := &fakeObjectAPI{}
	u := &Uploader{api: api, bucket: "b"}

	ev := &models.Event{ID: "ev-1"}
	frame := models.Frame{StreamID: "cam-1", Data: []byte{1, 2}}
	if err := u.Upload(context.Background(), frame, ev); err != nil {
		t.Fatal(err)
	}
	if api.name != "cam-1/ev-1.jpeg" {
		t.Errorf("object name = %s", api.name)
	}
}
