package village

import (
	"context"
	"errors"
	"strings"
	"time"

	"villageserver/models"

	"go.uber.org/zap"
)

// RecoverStalledTurns は期限を grace 以上過ぎても進んでいないターンを再設定します。
// 再設定した村の数を返す
func (e *Engine) RecoverStalledTurns(ctx context.Context, grace time.Duration) (int, error) {
	keys, err := e.store.Keys(ctx, models.TurnDeadlineRoot)
	if err != nil {
		return 0, err
	}
	now := e.Now()
	recovered := 0
	var errs []error
	for _, key := range keys {
		village := strings.TrimPrefix(key, models.TurnDeadlineRoot+"/")
		if village == "" || strings.Contains(village, "/") {
			continue
		}
		snap, err := e.store.Get(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var deadline models.TurnDeadline
		if err := snap.Decode(&deadline); err != nil {
			continue
		}
		if now.Before(time.Unix(deadline.At, 0).Add(grace)) {
			continue
		}

		turn, err := e.store.Get(ctx, models.TurnPath(village))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		current, ok := turn.String()
		if !ok || current == "" {
			// 村の削除後に書かれた期限など、対応するターンが無いものは捨てる
			e.logger.Info("ターンの無い期限を削除", zap.String("village", village), zap.String("role", deadline.Role))
			if err := e.deleteDeadline(ctx, village, deadline.Role); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		// ターンが既に別の役職へ移っていれば、その開始処理が期限を書き直す
		if current != deadline.Role {
			continue
		}
		e.logger.Warn("停止したターンを検出", zap.String("village", village), zap.String("role", deadline.Role))
		// 古い期限は先に消す。開始処理が遅延を登録すれば新しい期限が書かれ、
		// 何もしなければ期限は残らないので同じターンを繰り返し再設定しない
		if err := e.deleteDeadline(ctx, village, deadline.Role); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.RearmTurn(ctx, village, deadline.Role); err != nil {
			errs = append(errs, err)
			continue
		}
		recovered++
	}
	return recovered, errors.Join(errs...)
}
