// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Publisher copies a finished artifact somewhere shared.
type Publisher interface {
	// Publish uploads localPath and returns its remote URI.
	Publish(ctx context.Context, localPath string) (string, error)
}

// GCSPublisher uploads artifacts to a Cloud Storage bucket.
type GCSPublisher struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSPublisher creates a publisher for gs://bucket/prefix.
//
// # Inputs
//
//   - credentialsFile: Service account key path. Empty uses Application
//     Default Credentials.
//
// # Outputs
//
//   - error: When the key file is missing or the client cannot be built.
func NewGCSPublisher(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSPublisher, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket must not be empty")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		info, err := os.Stat(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("service account key not found at path: %s: %w", credentialsFile, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("service account key path is a directory: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSPublisher{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// ObjectName returns the object key for a local file.
func (p *GCSPublisher) ObjectName(localPath string) string {
	return path.Join(p.prefix, filepath.Base(localPath))
}

// Publish implements Publisher.
func (p *GCSPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	name := p.ObjectName(localPath)
	w := p.client.Bucket(p.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType(localPath)
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy %s to gs://%s/%s: %w", localPath, p.bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gs://%s/%s: %w", p.bucket, name, err)
	}
	return fmt.Sprintf("gs://%s/%s", p.bucket, name), nil
}

// Close releases the storage client.
func (p *GCSPublisher) Close() error {
	return p.client.Close()
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return "application/json"
	case ".xz":
		return "application/x-xz"
	case ".zst":
		return "application/zstd"
	default:
		return "application/octet-stream"
	}
}
