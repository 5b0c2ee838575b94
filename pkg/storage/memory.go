package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"
)

type memItem struct {
	Key string
	Val []byte
}

func (i memItem) Less(than btree.Item) bool {
	return i.Key < than.(memItem).Key
}

// MemoryBackend keeps artifacts in an in-process B-tree. Nothing survives
// the process; it backs dry runs and tests.
type MemoryBackend struct {
	tree *btree.BTree
	lock sync.RWMutex
	size int
}

func NewMemoryBackend(degree int) *MemoryBackend {
	return &MemoryBackend{
		tree: btree.New(degree),
	}
}

func (mb *MemoryBackend) Put(_ context.Context, key string, data []byte) error {
	mb.lock.Lock()
	defer mb.lock.Unlock()

	copied := make([]byte, len(data))
	copy(copied, data)
	if old := mb.tree.ReplaceOrInsert(memItem{Key: key, Val: copied}); old != nil {
		mb.size -= len(old.(memItem).Val)
	}
	mb.size += len(copied)
	return nil
}

func (mb *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	mb.lock.RLock()
	defer mb.lock.RUnlock()

	res := mb.tree.Get(memItem{Key: key})
	if res == nil {
		return nil, fmt.Errorf("memory key %q: %w", key, ErrNotFound)
	}
	val := res.(memItem).Val
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (mb *MemoryBackend) Exists(_ context.Context, key string) (bool, error) {
	mb.lock.RLock()
	defer mb.lock.RUnlock()
	return mb.tree.Has(memItem{Key: key}), nil
}

func (mb *MemoryBackend) Delete(_ context.Context, key string) error {
	mb.lock.Lock()
	defer mb.lock.Unlock()
	if old := mb.tree.Delete(memItem{Key: key}); old != nil {
		mb.size -= len(old.(memItem).Val)
	}
	return nil
}

// Keys lists stored keys in ascending order.
func (mb *MemoryBackend) Keys() []string {
	mb.lock.RLock()
	defer mb.lock.RUnlock()

	keys := make([]string, 0, mb.tree.Len())
	mb.tree.Ascend(func(i btree.Item) bool {
		keys = append(keys, i.(memItem).Key)
		return true
	})
	return keys
}

// Size is the total payload bytes held.
func (mb *MemoryBackend) Size() int {
	mb.lock.RLock()
	defer mb.lock.RUnlock()
	return mb.size
}

func (mb *MemoryBackend) Close() error { return nil }
