package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cortexa-labs/ragserve/internal/config"
)

// Store is per-owner namespaced blob storage. List returns the current
// filename -> fingerprint mapping for an owner; fingerprints change
// whenever the content changes.
type Store interface {
	List(ctx context.Context, owner string) (map[string]string, error)
	Download(ctx context.Context, owner, filename string) ([]byte, error)
	Upload(ctx context.Context, owner, filename string, r io.Reader, size int64) error
	Delete(ctx context.Context, owner, filename string) error
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.BlobStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("blob_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported blob store type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

// ObjectKey builds the canonical storage key for an owner's file.
func ObjectKey(owner, filename string) string {
	return owner + "/" + filename
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
