// Package backup writes document snapshots to S3-compatible object
// storage. Snapshots are an extra safety net next to the revisioned
// store and are taken after every successful save.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
)

// Service uploads JSON snapshots of the CRM document.
type Service struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

// New connects to the object store and ensures the bucket exists.
func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &Service{client: client, bucket: bucket, now: time.Now}, nil
}

// Snapshot uploads the document under a timestamped key. The revision
// is embedded in the object name so a snapshot can be matched back to
// the store's history.
func (s *Service) Snapshot(ctx context.Context, doc crm.Document, revision string) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	rev := revision
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev == "" {
		rev = "norev"
	}
	name := fmt.Sprintf("snapshots/data-%s-%s.json", s.now().UTC().Format("20060102T150405Z"), rev)

	_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", name, err)
	}
	return name, nil
}
