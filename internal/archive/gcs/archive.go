// Package gcs archives raw fetched HTML to a Cloud Storage bucket before
// normalization, so the original document survives extraction changes.
package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

type Archive struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

func New(ctx context.Context, bucket string, logger *zap.Logger) (*Archive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Archive{client: client, bucket: bucket, logger: logger.Named("archive")}, nil
}

// Save writes the object and returns its gs:// URI.
func (a *Archive) Save(ctx context.Context, key string, html []byte) (string, error) {
	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "text/html; charset=utf-8"
	if _, err := w.Write(html); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", key, err)
	}
	uri := fmt.Sprintf("gs://%s/%s", a.bucket, key)
	a.logger.Debug("archived page", zap.String("uri", uri), zap.Int("bytes", len(html)))
	return uri, nil
}

func (a *Archive) Close() error { return a.client.Close() }
