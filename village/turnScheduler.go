package village

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"villageserver/models"
	"villageserver/push"
	"villageserver/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNoActiveTurn = errors.New("village has no active turn")

// turnContext は遅延処理が捕捉する不変の情報。次のターンは常に role の位置から計算する
type turnContext struct {
	village    string
	role       string
	recipients []string
	armedAt    time.Time
}

// Recipients は role を割り当てられたプレイヤーの通知先を返します。通知先の無いプレイヤーはスキップ
func Recipients(roster models.Roster, registry models.DeviceRegistry, role string) []string {
	var addrs []string
	for _, player := range roster.Players() {
		if assigned, ok := roster.RoleOf(player); !ok || assigned != role {
			continue
		}
		addrs = append(addrs, registry[player]...)
	}
	return addrs
}

// StartTurn はターン開始の処理です。該当プレイヤーへ通知し、
// TurnDuration 後に次のターンへ進める遅延処理を登録して、すぐに戻ります。
// 通知の成否に関わらず遅延処理は登録される
func (e *Engine) StartTurn(ctx context.Context, village, role string) error {
	var playersSnap, tokensSnap store.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		playersSnap, err = e.store.Get(gctx, models.PlayersPath(village))
		return err
	})
	g.Go(func() (err error) {
		tokensSnap, err = e.store.Get(gctx, models.TokensPath(village))
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("read players and tokens of %s: %w", village, err)
	}

	logger := e.logger.With(zap.String("village", village), zap.String("role", role))
	if !playersSnap.HasChildren() || !tokensSnap.HasChildren() {
		logger.Debug("プレイヤーまたはトークンが無いためターンを開始しない")
		return nil
	}
	var roster models.Roster
	if err := playersSnap.Decode(&roster); err != nil {
		logger.Warn("プレイヤー一覧を解析できません", zap.Error(err))
		return nil
	}
	var registry models.DeviceRegistry
	if err := tokensSnap.Decode(&registry); err != nil {
		logger.Warn("トークン一覧を解析できません", zap.Error(err))
		return nil
	}

	tc := turnContext{
		village:    village,
		role:       role,
		recipients: Recipients(roster, registry, role),
		armedAt:    e.Now(),
	}
	e.sendTurnNotice(ctx, tc, e.texts.turnStart(role))
	if e.opts.TurnEndNotice == models.TurnEndNoticeImmediate {
		e.sendTurnNotice(ctx, tc, e.texts.turnEnd(role))
	}
	e.arm(ctx, tc)
	logger.Info("ターンを開始しました", zap.Int("recipients", len(tc.recipients)), zap.Duration("duration", e.opts.TurnDuration))
	return nil
}

// 通知の失敗はログに残すだけで、ターンの進行は止めない
func (e *Engine) sendTurnNotice(ctx context.Context, tc turnContext, msg push.Message) {
	if len(tc.recipients) == 0 {
		e.logger.Debug("通知先が無いため送信をスキップ", zap.String("village", tc.village), zap.String("role", tc.role))
		return
	}
	msg.Data = map[string]string{"village": tc.village, "role": tc.role}
	if err := e.push.Send(ctx, tc.recipients, msg); err != nil {
		e.logger.Warn("ターン通知の送信に失敗",
			zap.String("village", tc.village),
			zap.String("role", tc.role),
			zap.Error(err))
	}
}

func (e *Engine) arm(ctx context.Context, tc turnContext) {
	e.timers.AfterFunc(e.opts.TurnDuration, func(ctx context.Context) {
		if err := e.finishTurn(ctx, tc); err != nil {
			e.logger.Error("ターンの進行に失敗",
				zap.String("village", tc.village),
				zap.String("role", tc.role),
				zap.Error(err))
		}
	})
	if !e.opts.TrackDeadlines {
		return
	}
	deadline := models.TurnDeadline{Role: tc.role, At: tc.armedAt.Add(e.opts.TurnDuration).Unix()}
	if err := e.store.Set(ctx, models.DeadlinePath(tc.village), deadline); err != nil {
		e.logger.Warn("ターン期限の記録に失敗", zap.String("village", tc.village), zap.Error(err))
	}
}

func (e *Engine) finishTurn(ctx context.Context, tc turnContext) error {
	if e.opts.TurnEndNotice == models.TurnEndNoticeAfterDelay {
		e.sendTurnNotice(ctx, tc, e.texts.turnEnd(tc.role))
	}
	return e.AdvanceTurn(ctx, tc.village, tc.role)
}

// AdvanceTurn は role の次の役職をアクティブなターンとして書き込みます。
// 現在のターンではなく role の位置だけから計算するため、同じ role で何度呼ばれても
// 書き込まれる値は同じ。role が最後、またはターン順から次を決められない場合は
// 書き込まず、role の期限だけを消す
func (e *Engine) AdvanceTurn(ctx context.Context, village, role string) error {
	snap, err := e.store.Get(ctx, models.TurnOrderPath(village))
	if err != nil {
		return fmt.Errorf("read turn order of %s: %w", village, err)
	}
	logger := e.logger.With(zap.String("village", village), zap.String("role", role))
	if !snap.Exists() {
		logger.Debug("ターン順が無いため進行しない")
		e.clearDeadline(ctx, village, role)
		return nil
	}
	var order models.TurnOrder
	if err := snap.Decode(&order); err != nil {
		logger.Warn("ターン順を解析できません", zap.Error(err))
		e.clearDeadline(ctx, village, role)
		return nil
	}

	next, ok := order.Next(role)
	if !ok {
		if slices.Contains(order, role) {
			logger.Info("ラウンドが終了しました")
		} else {
			logger.Debug("ターン順に無い役職のため進行しない")
		}
		e.clearDeadline(ctx, village, role)
		return nil
	}
	if err := e.store.Set(ctx, models.TurnPath(village), next); err != nil {
		return fmt.Errorf("write next turn of %s: %w", village, err)
	}
	logger.Info("次のターンへ進みました", zap.String("next", next))
	return nil
}

func (e *Engine) clearDeadline(ctx context.Context, village, role string) {
	if !e.opts.TrackDeadlines {
		return
	}
	if err := e.deleteDeadline(ctx, village, role); err != nil {
		e.logger.Warn("ターン期限の削除に失敗", zap.String("village", village), zap.Error(err))
	}
}

// deleteDeadline は記録された期限が role のものである場合だけ削除する
func (e *Engine) deleteDeadline(ctx context.Context, village, role string) error {
	snap, err := e.store.Get(ctx, models.DeadlinePath(village))
	if err != nil {
		return fmt.Errorf("read deadline of %s: %w", village, err)
	}
	if !snap.Exists() {
		return nil
	}
	var deadline models.TurnDeadline
	if err := snap.Decode(&deadline); err != nil || deadline.Role != role {
		return nil
	}
	if err := e.store.Delete(ctx, models.DeadlinePath(village)); err != nil {
		return fmt.Errorf("delete deadline of %s: %w", village, err)
	}
	return nil
}

// RearmTurn はアクティブなターンを一度消してから書き直し、ターン開始の処理をやり直させます。
// 再起動で遅延処理が失われたときの復旧手段。role が空なら現在のターンを使う
func (e *Engine) RearmTurn(ctx context.Context, village, role string) error {
	if role == "" {
		snap, err := e.store.Get(ctx, models.TurnPath(village))
		if err != nil {
			return fmt.Errorf("read active turn of %s: %w", village, err)
		}
		current, ok := snap.String()
		if !ok || current == "" {
			return ErrNoActiveTurn
		}
		role = current
	}
	if err := e.store.Delete(ctx, models.TurnPath(village)); err != nil {
		return fmt.Errorf("clear active turn of %s: %w", village, err)
	}
	if err := e.store.Set(ctx, models.TurnPath(village), role); err != nil {
		return fmt.Errorf("rewrite active turn of %s: %w", village, err)
	}
	e.logger.Info("ターンを再設定しました", zap.String("village", village), zap.String("role", role))
	return nil
}
