package village

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler は一度だけ実行される遅延処理を登録します。
// 登録した処理はプロセスの停止以外では取り消されない
type Scheduler interface {
	AfterFunc(d time.Duration, fn func(ctx context.Context))
}

// TimerScheduler はゴルーチンとタイマーで Scheduler を実装します。
// 再起動で失われた遅延処理は復元されない（ターンが止まるだけで状態は壊れない）
type TimerScheduler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	armed   atomic.Int64
}

func NewTimerScheduler() *TimerScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerScheduler{ctx: ctx, cancel: cancel}
}

func (s *TimerScheduler) AfterFunc(d time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.wg.Add(1)
	s.armed.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.armed.Add(-1)

		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			fn(s.ctx)
		}
	}()
}

// Armed returns the number of delayed actions that have not finished yet.
func (s *TimerScheduler) Armed() int64 {
	return s.armed.Load()
}

// Stop は待機中の処理をすべて取り消し、実行中の処理が終わるまで待ちます。
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
