package store

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store. Fault fields let tests simulate a
// misbehaving backend.
type Memory struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte

	// CopyETag, when set, replaces the ETag Copy reports.
	CopyETag func(src, dst string) string
	// FailCopy and FailDelete force the next matching call to fail.
	FailCopy   error
	FailDelete error
}

// NewMemory creates an empty in-memory bucket.
func NewMemory(bucket string) *Memory {
	return &Memory{bucket: bucket, objects: make(map[string][]byte)}
}

// Put stores data under key.
func (m *Memory) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// Get returns the object at key.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

// Keys returns all keys under prefix, sorted.
func (m *Memory) Keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// List implements Store.
func (m *Memory) List(_ context.Context, prefix string) ([]Object, error) {
	keys := m.Keys(prefix)

	m.mu.Lock()
	defer m.mu.Unlock()
	objects := make([]Object, 0, len(keys))
	for _, k := range keys {
		data := m.objects[k]
		objects = append(objects, Object{Key: k, ETag: etagOf(data), Size: int64(len(data))})
	}
	return objects, nil
}

// Download implements Store.
func (m *Memory) Download(_ context.Context, key, path string) error {
	data, ok := m.Get(key)
	if !ok {
		return &Error{Op: "download", Key: key, Err: ErrNotFound}
	}
	return writeFile(path, bytes.NewReader(data))
}

// Copy implements Store.
func (m *Memory) Copy(_ context.Context, src, dst string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FailCopy; err != nil {
		m.FailCopy = nil
		return "", &Error{Op: "copy", Key: src, Err: err}
	}
	data, ok := m.objects[src]
	if !ok {
		return "", &Error{Op: "copy", Key: src, Err: fmt.Errorf("%w: %s", ErrNotFound, src)}
	}
	m.objects[dst] = append([]byte(nil), data...)
	if m.CopyETag != nil {
		return m.CopyETag(src, dst), nil
	}
	return etagOf(data), nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FailDelete; err != nil {
		m.FailDelete = nil
		return &Error{Op: "delete", Key: key, Err: err}
	}
	delete(m.objects, key)
	return nil
}

// Exists implements Store.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.Get(key)
	return ok, nil
}

// URL implements Store.
func (m *Memory) URL(key string) string {
	return "memory://" + m.bucket + "/" + key
}
