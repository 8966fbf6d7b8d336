package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const s3Scheme = "s3://"

// Location is a dataset source or destination: a local path or an object in
// a bucket.
type Location struct {
	Bucket string
	Key    string
	Path   string
}

// ParseLocation accepts "s3://bucket/key" or a local file path.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("location is required")
	}
	if !strings.HasPrefix(strings.ToLower(raw), s3Scheme) {
		return Location{Path: raw}, nil
	}

	rest := raw[len(s3Scheme):]
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("invalid location %q: bucket is required", raw)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

func (l Location) Remote() bool {
	return l.Bucket != ""
}

// IsPrefix reports whether the location names a folder of objects. An
// empty key is the bucket root.
func (l Location) IsPrefix() bool {
	return l.Remote() && (l.Key == "" || strings.HasSuffix(l.Key, "/"))
}

func (l Location) String() string {
	if l.Remote() {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// Child returns the location of key inside the same bucket.
func (l Location) Child(key string) Location {
	return Location{Bucket: l.Bucket, Key: key}
}

// ExportKey names a table export taken at the given time.
func ExportKey(table string, at time.Time) string {
	ts := at.UTC()
	return path.Join(
		"exports",
		strings.ToLower(table),
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%s.parquet", strings.ToLower(table), ts.Format("20060102T150405Z")),
	)
}
