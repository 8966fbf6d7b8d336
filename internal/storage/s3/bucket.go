// Package s3 keeps dataset files on S3-compatible object storage.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/querytrace/querytrace/internal/storage"
)

// objectAPI is the subset of the S3 API the bucket needs. Keys passed to it
// are absolute within the bucket.
type objectAPI interface {
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, key string) (storage.ObjectInfo, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket, region string) error
}

// Bucket serves dataset objects from one bucket, optionally below a key root.
type Bucket struct {
	api  objectAPI
	name string
	root string
}

var _ storage.ObjectStore = (*Bucket)(nil)

func NewBucket(name, root string, api objectAPI) (*Bucket, error) {
	if api == nil {
		return nil, fmt.Errorf("s3 api is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Bucket{api: api, name: name, root: cleanRoot(root)}, nil
}

func (b *Bucket) Name() string { return b.name }

func (b *Bucket) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	full, err := b.objectKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := b.api.PutObject(ctx, b.name, full, body, size, opts)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload s3://%s/%s: %w", b.name, full, err)
	}
	info.Key = b.relative(info.Key)
	return info, nil
}

func (b *Bucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	full, err := b.objectKey(key)
	if err != nil {
		return nil, err
	}
	body, err := b.api.GetObject(ctx, b.name, full)
	if err != nil {
		return nil, b.wrap("download", full, err)
	}
	return body, nil
}

func (b *Bucket) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	full, err := b.objectKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := b.api.StatObject(ctx, b.name, full)
	if err != nil {
		return storage.ObjectInfo{}, b.wrap("stat", full, err)
	}
	info.Key = b.relative(info.Key)
	return info, nil
}

// List returns the objects below prefix sorted by key. Folder markers are
// skipped and keys come back relative to the bucket root.
func (b *Bucket) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	prefix = strings.TrimPrefix(strings.TrimSpace(prefix), "/")
	if strings.Contains("/"+prefix, "/../") {
		return nil, fmt.Errorf("invalid object prefix: %q", prefix)
	}
	full := prefix
	if b.root != "" {
		full = b.root + "/" + prefix
	}

	objects, err := b.api.ListObjects(ctx, b.name, full)
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", b.name, full, err)
	}
	out := objects[:0]
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		obj.Key = b.relative(obj.Key)
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ensure creates the bucket when it does not exist yet.
func (b *Bucket) ensure(ctx context.Context, region string) error {
	exists, err := b.api.BucketExists(ctx, b.name)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", b.name, err)
	}
	if exists {
		return nil
	}
	if err := b.api.MakeBucket(ctx, b.name, region); err != nil {
		return fmt.Errorf("create bucket %q: %w", b.name, err)
	}
	return nil
}

func (b *Bucket) wrap(op, key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("s3://%s/%s: %w", b.name, key, storage.ErrObjectNotFound)
	}
	return fmt.Errorf("%s s3://%s/%s: %w", op, b.name, key, err)
}

func (b *Bucket) objectKey(key string) (string, error) {
	key = strings.TrimSpace(strings.TrimPrefix(key, "/"))
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	if b.root == "" {
		return cleaned, nil
	}
	return b.root + "/" + cleaned, nil
}

func (b *Bucket) relative(key string) string {
	if b.root == "" {
		return key
	}
	return strings.TrimPrefix(key, b.root+"/")
}

func cleanRoot(root string) string {
	root = path.Clean("/" + strings.TrimSpace(root))
	return strings.TrimPrefix(root, "/")
}
