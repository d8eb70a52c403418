// Package village はゲームのターン進行を担うエンジンです。
//
// ストアの変更イベントだけを起点に、役職の割り当て・ターンの進行と通知・
// プレイヤー状態の通知・村の削除時の後片付けを行う。各ハンドラーは並行に、
// 同じ村に対して重複して呼ばれても安全なように、読み取りをスナップショットとして扱い
// 捕捉した値だけを基に書き込む。
package village

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"slices"
	"time"

	"villageserver/models"
	"villageserver/push"
	"villageserver/store"

	"go.uber.org/zap"
)

const DefaultTurnDuration = 60 * time.Second

// UserLookup はプレイヤーIDから通知先アドレスを解決します。見つからなければ false
type UserLookup interface {
	Lookup(ctx context.Context, playerID string) (string, bool, error)
}

type Options struct {
	TurnDuration  time.Duration
	TurnEndNotice models.TurnEndNotice
	Locale        string
	// TrackDeadlines を有効にすると、ターンを開始するたびに TurnDeadline を記録する
	TrackDeadlines bool
}

type Engine struct {
	store  store.Store
	push   push.Channel
	users  UserLookup
	timers Scheduler
	logger *zap.Logger
	opts   Options
	texts  texts

	Now     func() time.Time
	NewRand func() *rand.Rand
}

func New(st store.Store, ch push.Channel, users UserLookup, timers Scheduler, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TurnDuration <= 0 {
		opts.TurnDuration = DefaultTurnDuration
	}
	if opts.TurnEndNotice == "" {
		opts.TurnEndNotice = models.TurnEndNoticeOff
	}
	return &Engine{
		store:   st,
		push:    ch,
		users:   users,
		timers:  timers,
		logger:  logger,
		opts:    opts,
		texts:   newTexts(opts.Locale),
		Now:     time.Now,
		NewRand: newRand,
	}
}

// reaction は (コンポーネント, 変更の種類) → 処理 の対応表の1行
type reaction struct {
	component string
	pattern   string
	on        []store.Transition
	handle    store.Handler
}

func (e *Engine) reactions() []reaction {
	return []reaction{
		{"RoleAssigner", models.PlayingPattern, []store.Transition{store.Created}, e.onPlaying},
		{"TurnScheduler", models.TurnPattern, []store.Transition{store.Created, store.Edited}, e.onTurn},
		{"PlayerStatusNotifier", models.StatusPattern, []store.Transition{store.Edited}, e.onStatus},
		{"VillageLifecycleManager", models.VillagePattern, []store.Transition{store.Deleted}, e.onVillage},
	}
}

// Register は全コンポーネントのハンドラーを w に登録します。
func (e *Engine) Register(w store.Watcher) {
	for _, r := range e.reactions() {
		r := r
		w.Watch(r.pattern, func(ctx context.Context, ch store.Change) error {
			transition := ch.Transition()
			if !slices.Contains(r.on, transition) {
				e.logger.Debug("対象外の変更を無視",
					zap.String("component", r.component),
					zap.String("path", ch.Path),
					zap.Stringer("transition", transition))
				return nil
			}
			return r.handle(ctx, ch)
		})
	}
}

func (e *Engine) onPlaying(ctx context.Context, ch store.Change) error {
	return e.AssignRoles(ctx, ch.Params["village"])
}

func (e *Engine) onTurn(ctx context.Context, ch store.Change) error {
	role, ok := ch.After.String()
	if !ok || role == "" {
		e.logger.Debug("役職名ではないターン値", zap.String("path", ch.Path))
		return nil
	}
	return e.StartTurn(ctx, ch.Params["village"], role)
}

func (e *Engine) onStatus(ctx context.Context, ch store.Change) error {
	status, ok := ch.After.String()
	if !ok {
		return nil
	}
	return e.NotifyStatus(ctx, ch.Params["village"], ch.Params["player"], status)
}

func (e *Engine) onVillage(ctx context.Context, ch store.Change) error {
	return e.TeardownVillage(ctx, ch.Params["village"])
}

// 乱数は暗号論的乱数でシードする。取得できなければ時刻を使う
func newRand() *rand.Rand {
	var b [8]byte
	seed := time.Now().UnixNano()
	if _, err := crand.Read(b[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(b[:]))
	}
	return rand.New(rand.NewSource(seed))
}
