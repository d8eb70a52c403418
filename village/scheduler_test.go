package village

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerSchedulerRunsAfterDelay(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	done := make(chan struct{})
	s.AfterFunc(10*time.Millisecond, func(ctx context.Context) { close(done) })
	assert.Equal(t, int64(1), s.Armed())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed action did not run")
	}
	assert.Eventually(t, func() bool { return s.Armed() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTimerSchedulerStopCancelsPending(t *testing.T) {
	s := NewTimerScheduler()
	var ran atomic.Bool
	s.AfterFunc(time.Hour, func(ctx context.Context) { ran.Store(true) })
	s.Stop()

	assert.False(t, ran.Load())
	assert.Zero(t, s.Armed())

	// 停止後の登録は無視される
	s.AfterFunc(time.Millisecond, func(ctx context.Context) { ran.Store(true) })
	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
	assert.Zero(t, s.Armed())
}
