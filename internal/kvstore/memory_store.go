package kvstore

import (
	"context"
	"sync"
)

// Op names a Store operation for call accounting and failure injection.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

// MemoryStore is an in-process Store. Every coordinator holding the same
// MemoryStore shares one storage origin.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string]string
	calls    MemoryCalls
	failures map[Op]error
	closed   bool
}

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	Get    int
	Set    int
	Remove int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]string),
		failures: make(map[Op]error),
	}
}

// FailOn makes every subsequent op return err. A nil err clears the failure.
func (m *MemoryStore) FailOn(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Get returns the value stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++

	if err := m.check(OpGet, key); err != nil {
		return "", false, err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Set++

	if err := m.check(OpSet, key); err != nil {
		return err
	}
	m.values[key] = value
	return nil
}

// Remove deletes key.
func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Remove++

	if err := m.check(OpRemove, key); err != nil {
		return err
	}
	delete(m.values, key)
	return nil
}

// Close marks the store closed. Values are kept so tests can inspect them.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns a snapshot of the call counters.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Snapshot returns a copy of all stored values.
func (m *MemoryStore) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// check must be called with mu held.
func (m *MemoryStore) check(op Op, key string) error {
	if m.closed {
		return ErrClosed.WithContext("key", key)
	}
	if err := m.failures[op]; err != nil {
		return wrap(ErrAccessDenied, key, err)
	}
	return nil
}

// UnavailableStore fails every operation, modelling storage that refuses
// access outright (private browsing, read-only profiles).
type UnavailableStore struct {
	Cause error
}

func (u UnavailableStore) Get(_ context.Context, key string) (string, bool, error) {
	return "", false, wrap(ErrAccessDenied, key, u.Cause)
}

func (u UnavailableStore) Set(_ context.Context, key, _ string) error {
	return wrap(ErrAccessDenied, key, u.Cause)
}

func (u UnavailableStore) Remove(_ context.Context, key string) error {
	return wrap(ErrAccessDenied, key, u.Cause)
}

func (UnavailableStore) Close() error { return nil }
