package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StoreFactory returns the object store serving a bucket.
type StoreFactory func(ctx context.Context, bucket string) (ObjectStore, error)

// Datasets reads and writes dataset files at local or remote locations.
type Datasets struct {
	Remote StoreFactory
}

func (d Datasets) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	if !loc.Remote() {
		f, err := os.Open(loc.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", loc, err)
		}
		return f, nil
	}
	store, err := d.store(ctx, loc)
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, loc.Key)
}

// ReadAll loads a dataset into memory. Parquet readers need random access.
func (d Datasets) ReadAll(ctx context.Context, loc Location) ([]byte, error) {
	rc, err := d.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}
	return body, nil
}

// Write stores body at loc. Options only apply to bucket locations.
func (d Datasets) Write(ctx context.Context, loc Location, body []byte, opts PutOptions) error {
	if !loc.Remote() {
		if dir := filepath.Dir(loc.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create directory for %s: %w", loc, err)
			}
		}
		if err := os.WriteFile(loc.Path, body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", loc, err)
		}
		return nil
	}
	store, err := d.store(ctx, loc)
	if err != nil {
		return err
	}
	_, err = store.Put(ctx, loc.Key, bytes.NewReader(body), int64(len(body)), opts)
	return err
}

// Expand resolves a location to the files it names. A bucket prefix or a
// local directory expands to every entry ending in suffix, sorted by key.
func (d Datasets) Expand(ctx context.Context, loc Location, suffix string) ([]Location, error) {
	if loc.Remote() {
		if !loc.IsPrefix() {
			return []Location{loc}, nil
		}
		store, err := d.store(ctx, loc)
		if err != nil {
			return nil, err
		}
		objects, err := store.List(ctx, loc.Key)
		if err != nil {
			return nil, err
		}
		out := make([]Location, 0, len(objects))
		for _, obj := range objects {
			if strings.HasSuffix(obj.Key, suffix) {
				out = append(out, loc.Child(obj.Key))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		return out, nil
	}

	info, err := os.Stat(loc.Path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", loc, err)
	}
	if !info.IsDir() {
		return []Location{loc}, nil
	}
	matches, err := filepath.Glob(filepath.Join(loc.Path, "*"+suffix))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", loc, err)
	}
	sort.Strings(matches)
	out := make([]Location, 0, len(matches))
	for _, match := range matches {
		out = append(out, Location{Path: match})
	}
	return out, nil
}

func (d Datasets) store(ctx context.Context, loc Location) (ObjectStore, error) {
	if d.Remote == nil {
		return nil, fmt.Errorf("object storage is not configured for %s", loc)
	}
	store, err := d.Remote(ctx, loc.Bucket)
	if err != nil {
		return nil, fmt.Errorf("open bucket %q: %w", loc.Bucket, err)
	}
	return store, nil
}
