package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// gcsObjectIterator abstracts the GCS object iterator.
type gcsObjectIterator interface {
	Next() (*gstorage.ObjectAttrs, error)
}

type gcsBackend struct {
	bucket      string
	newWriter   func(ctx context.Context, key, contentType string) io.WriteCloser
	newReader   func(ctx context.Context, key string) (io.ReadCloser, int64, error)
	newIterator func(ctx context.Context, prefix string) gcsObjectIterator
}

func newGCSBackend(ctx context.Context, bucket string) (*gcsBackend, error) {
	client, err := gstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	bkt := client.Bucket(bucket)
	return &gcsBackend{
		bucket: bucket,
		newWriter: func(ctx context.Context, key, contentType string) io.WriteCloser {
			w := bkt.Object(key).NewWriter(ctx)
			w.ContentType = contentType
			return w
		},
		newReader: func(ctx context.Context, key string) (io.ReadCloser, int64, error) {
			r, err := bkt.Object(key).NewReader(ctx)
			if err != nil {
				return nil, 0, err
			}
			return r, r.Attrs.Size, nil
		},
		newIterator: func(ctx context.Context, prefix string) gcsObjectIterator {
			return bkt.Objects(ctx, &gstorage.Query{Prefix: prefix})
		},
	}, nil
}

func (b *gcsBackend) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	w := b.newWriter(ctx, key, contentType)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs put %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs finalize %s: %w", key, err)
	}
	return nil
}

func (b *gcsBackend) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	r, size, err := b.newReader(ctx, key)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, 0, fmt.Errorf("gcs get %s: %w", key, ErrNotFound)
		}
		return nil, 0, fmt.Errorf("gcs get %s: %w", key, err)
	}
	return r, size, nil
}

func (b *gcsBackend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	listPrefix := prefix
	if listPrefix != "" && listPrefix[len(listPrefix)-1] != '/' {
		listPrefix += "/"
	}

	var objects []ObjectInfo
	it := b.newIterator(ctx, listPrefix)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list: %w", err)
		}
		objects = append(objects, ObjectInfo{Key: attrs.Name, Size: attrs.Size})
	}
	return objects, nil
}
