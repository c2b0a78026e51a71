package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

type BlobCache struct {
	containerClient *azblob.Client
	container       string
}

var _ Cache = (*BlobCache)(nil)

func NewBlobCache(accountName, accountKey, container string) (*BlobCache, error) {
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("azure storage account name and key are required")
	}

	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	// The service URL for blob endpoints is usually in the form: http(s)://<account>.blob.core.windows.net/
	client, err := azblob.NewClientWithSharedKeyCredential(fmt.Sprintf("https://%s.blob.core.windows.net/", accountName), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &BlobCache{
		containerClient: client,
		container:       container,
	}, nil
}

func (fc *BlobCache) Get(ctx context.Context, key string) (string, error) {
	stream, err := fc.containerClient.DownloadStream(ctx, fc.container, key, &azblob.DownloadStreamOptions{})
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return "", ErrNotFound
		}
		slog.ErrorContext(ctx, "failed to download blob", "key", key, "error", err)
		return "", err
	}
	defer func() {
		if err := stream.Body.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to close blob stream", "key", key, "error", err)
		}
	}()

	data, err := io.ReadAll(stream.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return string(data), nil
}

func (fc *BlobCache) Set(ctx context.Context, key, value string) error {
	_, err := fc.containerClient.UploadBuffer(ctx, fc.container, key, []byte(value), &azblob.UploadBufferOptions{})
	return err
}

// MultiSet uploads each blob in turn. Blob storage has no multi-blob
// transaction so a failure part way leaves earlier keys written.
func (fc *BlobCache) MultiSet(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := fc.Set(ctx, e.Key, e.Value); err != nil {
			return fmt.Errorf("failed to upload %s: %w", e.Key, err)
		}
	}
	return nil
}
