package assets

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO stores assets as objects in one bucket. PublicID is the object name.
type MinIO struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinIO(endpoint, accessKey, secretKey, bucket, publicURL string, useSSL bool) (*MinIO, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO: %w", err)
	}
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + endpoint
	}
	return &MinIO{client: client, bucket: bucket, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

func (m *MinIO) Upload(ctx context.Context, obj Object, opts Options) (Asset, error) {
	objectName := objectKey(opts, uuid.NewString(), path.Ext(obj.Name))
	_, err := m.client.PutObject(ctx, m.bucket, objectName, obj.Body, obj.Size, minio.PutObjectOptions{
		ContentType: obj.ContentType,
		UserMetadata: map[string]string{
			"original-filename": obj.Name,
		},
	})
	if err != nil {
		return Asset{}, fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	return Asset{URL: m.publicURL + "/" + m.bucket + "/" + objectName, PublicID: objectName}, nil
}

func (m *MinIO) Delete(ctx context.Context, publicID string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete from MinIO: %w", err)
	}
	return nil
}
