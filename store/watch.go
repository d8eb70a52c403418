package store

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type route struct {
	pattern Pattern
	handler Handler
}

// dispatcher は変更イベントを一致するハンドラーへ振り分けます。
// ハンドラーは呼び出しごとに別のゴルーチンで並行に実行される
type dispatcher struct {
	mu     sync.RWMutex
	routes []route
	wg     sync.WaitGroup
	logger *zap.Logger
}

func newDispatcher(logger *zap.Logger) *dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dispatcher{logger: logger}
}

// Watch registers h for every path that matches pattern.
func (d *dispatcher) Watch(pattern string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, route{pattern: ParsePattern(pattern), handler: h})
}

func (d *dispatcher) dispatch(ctx context.Context, ch Change) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.routes {
		params, ok := r.pattern.Match(ch.Path)
		if !ok {
			continue
		}
		invocation := ch
		invocation.Params = params
		d.wg.Add(1)
		go func(r route) {
			defer d.wg.Done()
			if err := r.handler(ctx, invocation); err != nil {
				d.logger.Error("変更ハンドラーが失敗しました",
					zap.String("pattern", r.pattern.String()),
					zap.String("path", invocation.Path),
					zap.Stringer("transition", invocation.Transition()),
					zap.Error(err))
			}
		}(r)
	}
}

// Wait blocks until every handler invocation started so far, including ones
// triggered by writes made from inside handlers, has returned.
func (d *dispatcher) Wait() {
	d.wg.Wait()
}
