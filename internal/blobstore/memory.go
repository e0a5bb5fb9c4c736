package blobstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// MemoryStore keeps blobs in process memory. Fingerprints follow the S3
// convention of an MD5 content hash. Intended for tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func init() {
	Register("memory", func(args interface{}) (Store, error) {
		return NewMemoryStore(), nil
	})
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) List(ctx context.Context, owner string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := owner + "/"
	files := make(map[string]string)
	for key, data := range m.blobs {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			sum := md5.Sum(data)
			files[key[len(prefix):]] = hex.EncodeToString(sum[:])
		}
	}
	return files, nil
}

func (m *MemoryStore) Download(ctx context.Context, owner, filename string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[ObjectKey(owner, filename)]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s/%s", owner, filename)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) Upload(ctx context.Context, owner, filename string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.blobs[ObjectKey(owner, filename)] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, owner, filename string) error {
	m.mu.Lock()
	delete(m.blobs, ObjectKey(owner, filename))
	m.mu.Unlock()
	return nil
}
