// Package objectstore defines the bucket-oriented blob contract job
// execution reads input from and writes output to, plus an in-memory
// implementation good enough for tests and local runs.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Artifact identifies one object: the bucket/key pair an Executor
// reads from or writes to, plus a resolvable URL for the job record's
// result field.
type Artifact struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	URL    string `json:"url"`
}

// Store is the external collaborator contract for blob storage (C7).
type Store interface {
	ListBuckets(ctx context.Context) ([]string, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader) (Artifact, error)
}

// Memory is an in-process Store: a map[bucket]map[key][]byte guarded
// by a mutex. internal/node uses it for every node, whether or not an
// object-store endpoint is configured; every test in internal/job and
// internal/executor uses it exclusively.
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
	urlBase string
}

// NewMemory creates an empty in-memory store. urlBase is prefixed onto
// the synthetic URL returned by PutObject (e.g. "mem://local").
func NewMemory(urlBase string) *Memory {
	return &Memory{buckets: make(map[string]map[string][]byte), urlBase: urlBase}
}

func (m *Memory) ListBuckets(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.buckets))
	for b := range m.buckets {
		names = append(names, b)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("objectstore: bucket %q not found", bucket)
	}
	data, ok := b[key]
	if !ok {
		return nil, fmt.Errorf("objectstore: object %s/%s not found", bucket, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) PutObject(ctx context.Context, bucket, key string, r io.Reader) (Artifact, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Artifact{}, fmt.Errorf("objectstore: read object body: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string][]byte)
		m.buckets[bucket] = b
	}
	b[key] = data

	return Artifact{Bucket: bucket, Key: key, URL: fmt.Sprintf("%s/%s/%s", m.urlBase, bucket, key)}, nil
}
