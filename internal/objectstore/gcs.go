/*
 *    Copyright 2026 donelist
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package objectstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSStore stores objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewGCSStore creates a new GCSStore for the given bucket.
func NewGCSStore(ctx context.Context, bucket string, logger *zap.Logger) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: bucket,
		logger: logger.Named("gcs_store"),
	}, nil
}

func (s *GCSStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %s: %w", key, err)
	}
	s.logger.Info("Uploaded object to GCS", zap.String("key", key), zap.Int("bytes", len(data)))
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key), nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
