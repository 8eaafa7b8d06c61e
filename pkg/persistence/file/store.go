package file

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// collection is a mutex-guarded JSON-per-record store for one entity kind.
// Update holds the write lock for the whole read-mutate-write cycle, which is
// what gives repository Update calls their compare-and-swap behavior.
type collection[T any] struct {
	dir      string
	notFound error
	mu       sync.RWMutex
}

func newCollection[T any](root, name string, notFound error) *collection[T] {
	return &collection[T]{
		dir:      filepath.Join(root, name),
		notFound: notFound,
	}
}

func (c *collection[T]) path(id string) string {
	return filepath.Join(c.dir, id+".json")
}

func (c *collection[T]) save(id string, value *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.write(id, value)
}

func (c *collection[T]) write(id string, value *T) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create collection directory: %w", err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", id, err)
	}

	if err := os.WriteFile(c.path(id), data, 0o600); err != nil {
		return fmt.Errorf("failed to write record %s: %w", id, err)
	}

	return nil
}

func (c *collection[T]) get(id string) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.read(id)
}

func (c *collection[T]) read(id string) (*T, error) {
	data, err := os.ReadFile(c.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, c.notFound
		}

		return nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}

	value := new(T)
	if err := json.Unmarshal(data, value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", id, err)
	}

	return value, nil
}

func (c *collection[T]) all() ([]*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, err := fs.Glob(os.DirFS(c.dir), "*.json")
	if err != nil || len(entries) == 0 {
		return []*T{}, nil
	}

	values := make([]*T, 0, len(entries))

	for _, entry := range entries {
		value, err := c.read(strings.TrimSuffix(entry, ".json"))
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	return values, nil
}

func (c *collection[T]) update(id string, fn func(*T) error) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, err := c.read(id)
	if err != nil {
		return nil, err
	}

	if err := fn(value); err != nil {
		return nil, err
	}

	if err := c.write(id, value); err != nil {
		return nil, err
	}

	return value, nil
}

func (c *collection[T]) delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path(id))
	if os.IsNotExist(err) {
		return c.notFound
	}

	return err
}
