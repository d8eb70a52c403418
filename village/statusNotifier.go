package village

import (
	"context"
	"fmt"

	"villageserver/models"

	"go.uber.org/zap"
)

// NotifyStatus はプレイヤーのステータスに追記された最新の出来事を、そのプレイヤー本人に通知します。
// 解析できない・未知の種類のステータスは通知しない（エラーではない）
func (e *Engine) NotifyStatus(ctx context.Context, village, player, status string) error {
	logger := e.logger.With(zap.String("village", village), zap.String("player", player))

	ev, ok := models.ParseStatus(status)
	if !ok {
		logger.Debug("ステータスを解析できません", zap.String("status", status))
		return nil
	}
	msg, ok := e.texts.status(ev)
	if !ok {
		logger.Debug("通知対象外のステータス", zap.String("kind", string(ev.Kind)))
		return nil
	}

	addr, found, err := e.users.Lookup(ctx, player)
	if err != nil {
		return fmt.Errorf("lookup device of %s: %w", player, err)
	}
	if !found || addr == "" {
		logger.Debug("通知先が登録されていません")
		return nil
	}

	msg.Data = map[string]string{"village": village, "kind": string(ev.Kind)}
	if err := e.push.Send(ctx, []string{addr}, msg); err != nil {
		return fmt.Errorf("notify %s of %s: %w", player, ev.Kind, err)
	}
	logger.Info("ステータス通知を送信しました", zap.String("kind", string(ev.Kind)))
	return nil
}
