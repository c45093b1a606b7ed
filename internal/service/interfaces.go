// Package service defines the interfaces shared between application layers.
package service

import (
	"context"
)

// KVStore is an asynchronous key-value store with no cross-key transactions.
// Values are opaque JSON documents. Get returns common.ErrNotFound for absent keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Persisted state keys.
const (
	KeyCurrentSession = "currentSession"
	KeyURLCache       = "urlCache"
	KeyStats          = "stats"
	KeySettings       = "settings"
	KeySessions       = "sessions"
)
