package village

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"villageserver/push"
	"villageserver/store"

	"go.uber.org/zap/zaptest"
)

type sent struct {
	addrs []string
	msg   push.Message
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeChannel) Send(ctx context.Context, addrs []string, msg push.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{addrs: append([]string(nil), addrs...), msg: msg})
	return f.err
}

func (f *fakeChannel) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type fakeUsers struct {
	addrs map[string]string
	err   error
}

func (f fakeUsers) Lookup(ctx context.Context, playerID string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	addr, ok := f.addrs[playerID]
	return addr, ok, nil
}

type pendingTask struct {
	delay time.Duration
	fn    func(ctx context.Context)
}

// manualScheduler は遅延処理を溜めておき、テストから明示的に実行する
type manualScheduler struct {
	mu    sync.Mutex
	tasks []pendingTask
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, pendingTask{delay: d, fn: fn})
}

func (s *manualScheduler) pending() []pendingTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pendingTask(nil), s.tasks...)
}

// fireAll は溜まっている処理を取り出して実行する
func (s *manualScheduler) fireAll(ctx context.Context) int {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	for _, t := range tasks {
		t.fn(ctx)
	}
	return len(tasks)
}

// spyStore は Update の呼び出しを記録する
type spyStore struct {
	store.Store
	mu      sync.Mutex
	updates []map[string]any
}

func (s *spyStore) Update(ctx context.Context, values map[string]any) error {
	s.mu.Lock()
	s.updates = append(s.updates, values)
	s.mu.Unlock()
	return s.Store.Update(ctx, values)
}

func (s *spyStore) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

func (s *spyStore) Delete(ctx context.Context, path string) error {
	return s.Update(ctx, map[string]any{path: nil})
}

func (s *spyStore) recorded() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.updates...)
}

type failingStore struct {
	store.Store
}

var errStoreDown = errors.New("store down")

func (failingStore) Get(ctx context.Context, path string) (store.Snapshot, error) {
	return store.Snapshot{}, errStoreDown
}

type testEnv struct {
	engine *Engine
	store  *store.MemoryStore
	spy    *spyStore
	push   *fakeChannel
	timers *manualScheduler
	ctx    context.Context
}

func newTestEnv(t *testing.T, users fakeUsers, opts Options) testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mem := store.NewMemoryStore(logger)
	spy := &spyStore{Store: mem}
	ch := &fakeChannel{}
	timers := &manualScheduler{}
	eng := New(spy, ch, users, timers, logger, opts)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	eng.NewRand = func() *rand.Rand { return rand.New(rand.NewSource(42)) }
	return testEnv{engine: eng, store: mem, spy: spy, push: ch, timers: timers, ctx: context.Background()}
}

// seed は書き込みイベントを発生させる前に初期データを投入する
func (env testEnv) seed(t *testing.T, values map[string]any) {
	t.Helper()
	if err := env.store.Update(env.ctx, values); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	env.store.Wait()
}

func (env testEnv) get(t *testing.T, path string) store.Snapshot {
	t.Helper()
	snap, err := env.store.Get(env.ctx, path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	return snap
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

