package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// BlobStore adapts a gocloud.dev/blob.Bucket to the Store interface,
// generalizing the teacher's Reader (which opened a bucket once and read
// whole objects via bucket.NewReader) to the full get/get-partial/set/erase
// contract the core needs, including native ranged reads.
type BlobStore struct {
	bucket *blob.Bucket
}

// NewBlobStore opens a bucket at the given gocloud.dev URL (e.g.
// "file:///path", "mem://", "s3://bucket", "gs://bucket") and wraps it.
// This package imports no bucket driver, so opening succeeds only for URL
// schemes whose driver is registered elsewhere in the program.
func NewBlobStore(ctx context.Context, urlstr string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open bucket %q: %w", urlstr, err)
	}
	return &BlobStore{bucket: bucket}, nil
}

// NewBlobStoreFromBucket wraps an already-open bucket, e.g. one configured
// with custom credentials by the caller.
func NewBlobStoreFromBucket(bucket *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: bucket}
}

// Close releases the underlying bucket handle.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: failed to read %q: %w", key, err)
	}
	return data, nil
}

func (s *BlobStore) Size(ctx context.Context, key string) (uint64, error) {
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("store: failed to stat %q: %w", key, err)
	}
	return uint64(attrs.Size), nil
}

func (s *BlobStore) GetPartialValues(ctx context.Context, key string, ranges []Range) ([][]byte, error) {
	size, err := s.Size(ctx, key)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, len(ranges))
	for i, r := range ranges {
		start, end, err := r.Resolve(size)
		if err != nil {
			return nil, err
		}
		length := int64(end - start)
		reader, err := s.bucket.NewRangeReader(ctx, key, int64(start), length, nil)
		if err != nil {
			if gcerrors.Code(err) == gcerrors.NotFound {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("store: failed to open ranged reader for %q: %w", key, err)
		}
		buf := make([]byte, length)
		_, err = io.ReadFull(reader, buf)
		reader.Close()
		if err != nil {
			return nil, fmt.Errorf("store: failed to read range [%d,%d) of %q: %w", start, end, key, err)
		}
		out[i] = buf
	}
	return out, nil
}

func (s *BlobStore) Set(ctx context.Context, key string, value []byte) error {
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("store: failed to open writer for %q: %w", key, err)
	}
	if _, err := w.Write(value); err != nil {
		w.Close()
		return fmt.Errorf("store: failed to write %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("store: failed to finalize write of %q: %w", key, err)
	}
	return nil
}

// ListDir implements Lister via the bucket's delimited listing, treating
// "/" as the hierarchy delimiter so only immediate children are returned.
func (s *BlobStore) ListDir(ctx context.Context, prefix string) ([]string, error) {
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	var names []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: failed to list %q: %w", prefix, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), "/")
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *BlobStore) Erase(ctx context.Context, key string) (bool, error) {
	exists, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("store: failed to check existence of %q: %w", key, err)
	}
	if !exists {
		return false, nil
	}
	if err := s.bucket.Delete(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("store: failed to delete %q: %w", key, err)
	}
	return true, nil
}
