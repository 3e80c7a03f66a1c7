package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"codearena/internal/common/storage"
	pkgerrors "codearena/pkg/errors"

	"github.com/gosimple/slug"
	"github.com/klauspost/compress/zstd"
)

// ArtifactStore keeps zstd-compressed copies of submitted source in object storage.
type ArtifactStore struct {
	storage storage.ObjectStorage
	bucket  string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewArtifactStore(objects storage.ObjectStorage, bucket string) (*ArtifactStore, error) {
	if objects == nil {
		return nil, fmt.Errorf("object storage is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("artifact bucket is required")
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder failed: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder failed: %w", err)
	}
	return &ArtifactStore{storage: objects, bucket: bucket, encoder: encoder, decoder: decoder}, nil
}

// ArtifactKey is the object key for a job's source.
func ArtifactKey(problemID, jobID, extension string) string {
	problem := slug.Make(problemID)
	if problem == "" {
		problem = "unknown"
	}
	return fmt.Sprintf("submissions/%s/%s.%s.zst", problem, jobID, extension)
}

// Save uploads code under key. Keys are write-once: an existing object is left untouched.
func (s *ArtifactStore) Save(ctx context.Context, key, code string, metadata map[string]string) error {
	if _, err := s.storage.StatObject(ctx, s.bucket, key); err == nil {
		return nil
	}
	payload := s.encoder.EncodeAll([]byte(code), nil)
	err := s.storage.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{
		ContentType:     "text/plain; charset=utf-8",
		ContentEncoding: "zstd",
		Metadata:        metadata,
	})
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.StorageError, "upload artifact %s failed", key)
	}
	return nil
}

// Load downloads and decompresses an artifact.
func (s *ArtifactStore) Load(ctx context.Context, key string) (string, error) {
	reader, err := s.storage.GetObject(ctx, s.bucket, key)
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.StorageError, "download artifact %s failed", key)
	}
	defer reader.Close()
	payload, err := io.ReadAll(reader)
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.StorageError, "read artifact %s failed", key)
	}
	code, err := s.decoder.DecodeAll(payload, nil)
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.StorageError, "decompress artifact %s failed", key)
	}
	return string(code), nil
}
