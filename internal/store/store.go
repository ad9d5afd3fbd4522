// Package store persists JSON-serialized collections in a key-value backend.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a key holds no value.
var ErrNotFound = errors.New("key not found")

// DecodeError reports stored content that could not be deserialized.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Backend is the raw byte-level storage scope.
type Backend interface {
	// Read returns ErrNotFound when the key is absent.
	Read(ctx context.Context, key string) ([]byte, error)
	// WriteBatch stores every entry or none of them.
	WriteBatch(ctx context.Context, entries map[string][]byte) error
	Close() error
}

// Accessor reads and writes JSON values by key.
type Accessor interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
}

var (
	_ Accessor = (*Store)(nil)
	_ Accessor = (*Tx)(nil)
)

type Store struct {
	backend Backend
	mu      sync.Mutex
}

func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Get decodes the value under key into dest.
func (s *Store) Get(ctx context.Context, key string, dest any) error {
	raw, err := s.backend.Read(ctx, key)
	if err != nil {
		return err
	}
	return decode(key, raw, dest)
}

// Set serializes value and writes it under key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.WriteBatch(ctx, map[string][]byte{key: raw})
}

// Update runs fn against a buffered transaction and flushes every value it
// set as a single batch. Nothing is written when fn returns an error.
// Updates are serialized within the process.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{store: s, pending: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.pending) == 0 {
		return nil
	}
	if err := s.backend.WriteBatch(ctx, tx.pending); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// Tx buffers writes until the enclosing Update returns. Reads see the
// buffered writes first.
type Tx struct {
	store   *Store
	pending map[string][]byte
}

func (tx *Tx) Get(ctx context.Context, key string, dest any) error {
	if raw, ok := tx.pending[key]; ok {
		return decode(key, raw, dest)
	}
	return tx.store.Get(ctx, key, dest)
}

func (tx *Tx) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	tx.pending[key] = raw
	return nil
}

// Load reads key into a T, returning fallback when the key is missing or its
// content cannot be decoded. Only backend failures are returned as errors.
func Load[T any](ctx context.Context, a Accessor, key string, fallback T) (T, error) {
	var v T
	err := a.Get(ctx, key, &v)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		zap.S().Warnw("discarding unreadable stored value", "key", key, "error", decErr.Err)
		return fallback, nil
	}
	return fallback, err
}

func decode(key string, raw []byte, dest any) error {
	// a stored JSON null counts as absent
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &DecodeError{Key: key, Err: err}
	}
	return nil
}
