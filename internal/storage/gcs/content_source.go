// Package gcs serves publication files from a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// Config selects the bucket and the object prefix acting as the directory.
type Config struct {
	Bucket string
	Prefix string
}

// ContentSource lists and reads objects directly under Prefix.
type ContentSource struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a ContentSource. The caller owns client.
func New(client *storage.Client, cfg Config) (*ContentSource, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &ContentSource{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// List returns object names under the prefix with the prefix removed.
// Nested "directories" are not descended into.
func (s *ContentSource) List(ctx context.Context) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix, Delimiter: "/"})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", s.bucket, s.prefix, err)
		}
		if attrs.Name == "" {
			continue // synthetic prefix entry
		}
		name := strings.TrimPrefix(attrs.Name, s.prefix)
		if name != "" && !strings.Contains(name, "/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read downloads one object. Missing objects match fs.ErrNotExist.
func (s *ContentSource) Read(ctx context.Context, name string) ([]byte, error) {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		return nil, fmt.Errorf("read %q: %w", name, fs.ErrNotExist)
	}
	r, err := s.client.Bucket(s.bucket).Object(s.prefix + name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("read %s: %w", name, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s%s: %w", s.bucket, s.prefix, name, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s%s: %w", s.bucket, s.prefix, name, err)
	}
	return data, nil
}
