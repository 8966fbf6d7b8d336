package s3

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/querytrace/querytrace/internal/storage"
)

// Config describes the S3-compatible endpoint holding dataset files. Bucket
// is the default for locations that do not name one.
type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// Connector opens buckets on one endpoint and reuses them across locations.
type Connector struct {
	cfg Config

	mu      sync.Mutex
	api     objectAPI
	buckets map[string]*Bucket
}

func NewConnector(cfg Config) *Connector {
	return &Connector{cfg: cfg, buckets: map[string]*Bucket{}}
}

func newConnectorWithAPI(cfg Config, api objectAPI) *Connector {
	c := NewConnector(cfg)
	c.api = api
	return c
}

// Bucket returns the store for name, or for the configured default bucket
// when name is empty. It satisfies storage.StoreFactory.
func (c *Connector) Bucket(ctx context.Context, name string) (storage.ObjectStore, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(c.cfg.Bucket)
	}
	if name == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if bucket, ok := c.buckets[name]; ok {
		return bucket, nil
	}
	if c.api == nil {
		api, err := newMinioAPI(c.cfg)
		if err != nil {
			return nil, err
		}
		c.api = api
	}

	bucket, err := NewBucket(name, c.cfg.Prefix, c.api)
	if err != nil {
		return nil, err
	}
	if c.cfg.AutoCreateBucket {
		if err := bucket.ensure(ctx, strings.TrimSpace(c.cfg.Region)); err != nil {
			return nil, err
		}
	}
	c.buckets[name] = bucket
	return bucket, nil
}
