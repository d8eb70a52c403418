package store

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore はプロセス内のマップで Store を実装します。テストとローカル開発用
type MemoryStore struct {
	*dispatcher
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		dispatcher: newDispatcher(logger),
		data:       make(map[string][]byte),
	}
}

func (m *MemoryStore) Get(ctx context.Context, path string) (Snapshot, error) {
	path = normalize(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[path]
	if !ok {
		return Snapshot{Path: path}, nil
	}
	return Snapshot{Path: path, Raw: append([]byte(nil), raw...)}, nil
}

func (m *MemoryStore) Set(ctx context.Context, path string, value any) error {
	return m.Update(ctx, map[string]any{path: value})
}

func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	return m.Update(ctx, map[string]any{path: nil})
}

// Update は全ての値をひとつのロック区間で書き込みます。
// 読み手が途中の状態を観測することはない
func (m *MemoryStore) Update(ctx context.Context, values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for path, value := range values {
		raw, err := encode(value)
		if err != nil {
			return err
		}
		encoded[normalize(path)] = raw
	}
	paths := make([]string, 0, len(encoded))
	for path := range encoded {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var changes []Change
	m.mu.Lock()
	for _, path := range paths {
		next := encoded[path]
		prev, existed := m.data[path]
		switch {
		case next == nil && !existed:
			continue
		case next == nil:
			delete(m.data, path)
		case existed && bytes.Equal(prev, next):
			continue
		default:
			m.data[path] = next
		}
		changes = append(changes, Change{
			Path:   path,
			Before: Snapshot{Path: path, Raw: prev},
			After:  Snapshot{Path: path, Raw: next},
		})
	}
	// イベントはロック中に登録し、書き込み順に並べる
	for _, ch := range changes {
		m.dispatch(context.Background(), ch)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	prefix = normalize(prefix)
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for path := range m.data {
		if prefix == "" || path == prefix || strings.HasPrefix(path, prefix+"/") {
			keys = append(keys, path)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Run は Watcher の実装を揃えるためのもの。イベントは書き込み時に直接配信される
func (m *MemoryStore) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
