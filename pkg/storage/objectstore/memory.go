package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Client with version-enabled bucket semantics:
// every Put records a new version, RemoveCurrent records a delete marker,
// and RemoveVersion erases a single entry from history. It backs the
// "memory" provider for local development and doubles as the store used
// in tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]memVersion
	nextID  int64
	baseURL string
}

type memVersion struct {
	id     string
	size   int64
	marker bool
}

// NewMemory constructs an empty in-memory store.
func NewMemory(publicBaseURL string) *Memory {
	return &Memory{
		objects: make(map[string][]memVersion),
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (m *Memory) newVersionID() string {
	m.nextID++
	return fmt.Sprintf("ver-%06d", m.nextID)
}

func (m *Memory) PutFile(ctx context.Context, localPath, key, contentType, cacheControl string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	m.record(key, info.Size(), false)
	return nil
}

func (m *Memory) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType, cacheControl string) error {
	n, err := io.Copy(io.Discard, reader)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if size < 0 {
		size = n
	}
	m.record(key, size, false)
	return nil
}

func (m *Memory) record(key string, size int64, marker bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append(m.objects[key], memVersion{
		id:     m.newVersionID(),
		size:   size,
		marker: marker,
	})
}

// live reports whether the newest version of key is a real object.
func live(versions []memVersion) bool {
	return len(versions) > 0 && !versions[len(versions)-1].marker
}

func (m *Memory) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key, versions := range m.objects {
		if strings.HasPrefix(key, prefix) && live(versions) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) ListVersions(ctx context.Context, prefix string) ([]Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var out []Version
	for _, key := range keys {
		versions := m.objects[key]
		// newest first, matching S3 listing order
		for i := len(versions) - 1; i >= 0; i-- {
			out = append(out, Version{
				Key:            key,
				VersionID:      versions[i].id,
				IsDeleteMarker: versions[i].marker,
			})
		}
	}
	return out, nil
}

func (m *Memory) RemoveVersion(ctx context.Context, key, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("remove %s@%s: no such object", key, versionID)
	}
	for i, v := range versions {
		if v.id == versionID {
			versions = append(versions[:i], versions[i+1:]...)
			if len(versions) == 0 {
				delete(m.objects, key)
			} else {
				m.objects[key] = versions
			}
			return nil
		}
	}
	return fmt.Errorf("remove %s@%s: no such version", key, versionID)
}

func (m *Memory) RemoveCurrent(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Deleting by key on a versioned bucket never fails for missing
	// objects; it records a delete marker either way.
	m.objects[key] = append(m.objects[key], memVersion{
		id:     m.newVersionID(),
		marker: true,
	})
	return nil
}

func (m *Memory) PublicURL(key string) string {
	return m.baseURL + "/" + strings.TrimLeft(key, "/")
}

func (m *Memory) Close() error {
	return nil
}
