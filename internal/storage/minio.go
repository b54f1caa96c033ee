// Copyright (c) 2025 Northbound System
package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/northbound/ragcore/internal/domain"
	"github.com/northbound/ragcore/internal/logger"
)

// MinioAdapter is an object-store-backed Storage Adapter, selected in place
// of the local filesystem when config names an S3-compatible endpoint.
type MinioAdapter struct {
	client *minio.Client
	bucket string
}

// NewMinioAdapter dials endpoint and ensures bucket exists.
func NewMinioAdapter(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioAdapter, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, domain.Wrap(domain.KindUnavailable, "init minio client", err)
	}

	a := &MinioAdapter{client: client, bucket: bucket}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *MinioAdapter) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err == nil && exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return domain.Wrap(domain.KindUnavailable, "create bucket", err)
	}
	return nil
}

func (a *MinioAdapter) Put(ctx context.Context, workspaceID string, data []byte, contentType string) (string, error) {
	key := contentKey(workspaceID, data)
	reader := bytes.NewReader(data)
	_, err := a.client.PutObject(ctx, a.bucket, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Errorf("storage: minio put failed for key %s: %v", key, err)
		return "", domain.Wrap(domain.KindUnavailable, "put object", err)
	}
	return key, nil
}

func (a *MinioAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, domain.Wrap(domain.KindUnavailable, "get object", err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return nil, domain.New(domain.KindNotFound, "storage object not found: "+key)
		}
		return nil, domain.Wrap(domain.KindUnavailable, "stat object", err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, domain.Wrap(domain.KindUnavailable, "read object", err)
	}
	return data, nil
}

func (a *MinioAdapter) Delete(ctx context.Context, key string) error {
	if err := a.client.RemoveObject(ctx, a.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return domain.Wrap(domain.KindUnavailable, "delete object", err)
	}
	return nil
}

var _ Adapter = (*MinioAdapter)(nil)
