package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore keeps documents as objects in a Google Cloud Storage bucket
type GCSStore struct {
	client  *gcs.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewGCSStore creates a store writing objects under prefix in bucket
func NewGCSStore(client *gcs.Client, bucket, prefix string) *GCSStore {
	return &GCSStore{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		timeout: 2 * time.Minute,
	}
}

// NewGCSClient creates a storage client. credentials may be a JSON key or
// a path to a key file; empty uses application default credentials.
func NewGCSClient(ctx context.Context, credentials string) (*gcs.Client, error) {
	opts := ClientOptions(credentials)
	opts = append(opts, option.WithScopes(gcs.ScopeReadWrite))
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

// ClientOptions turns a credentials setting into client options
func ClientOptions(credentials string) []option.ClientOption {
	creds := strings.TrimSpace(credentials)
	if creds == "" {
		return []option.ClientOption{}
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

// ObjectKey returns the bucket key of a document
func (s *GCSStore) ObjectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Put uploads data, replacing any previous object with the same name
func (s *GCSStore) Put(ctx context.Context, name string, data []byte) error {
	if !ValidName(name) {
		return NewError("put", name, fmt.Errorf("invalid document name"))
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(s.ObjectKey(name)).NewWriter(ctx)
	w.ContentType = "application/pdf"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return NewError("put", name, fmt.Errorf("failed to write data to GCS: %w", err))
	}
	if err := w.Close(); err != nil {
		return NewError("put", name, fmt.Errorf("failed to close GCS writer: %w", err))
	}
	return nil
}

// Get downloads a document
func (s *GCSStore) Get(ctx context.Context, name string) ([]byte, error) {
	if !ValidName(name) {
		return nil, NewError("get", name, ErrNotFound)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r, err := s.client.Bucket(s.bucket).Object(s.ObjectKey(name)).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, NewError("get", name, ErrNotFound)
	}
	if err != nil {
		return nil, NewError("get", name, fmt.Errorf("failed to open GCS reader: %w", err))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewError("get", name, err)
	}
	return data, nil
}

// List returns the documents under the prefix, sorted by name
func (s *GCSStore) List(ctx context.Context) ([]Object, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query := &gcs.Query{Delimiter: "/"}
	if s.prefix != "" {
		query.Prefix = s.prefix + "/"
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, query)
	objects := []Object{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, NewError("list", "", err)
		}
		name := strings.TrimPrefix(attrs.Name, query.Prefix)
		if attrs.Prefix != "" || !ValidName(name) {
			continue
		}
		objects = append(objects, Object{
			Name:     name,
			Size:     attrs.Size,
			Modified: attrs.Updated.UTC(),
		})
	}
	return objects, nil
}
