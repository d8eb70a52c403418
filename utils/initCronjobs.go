package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TurnRecoverer は期限切れのまま止まったターンを再開させる（village.Engine）
type TurnRecoverer interface {
	RecoverStalledTurns(ctx context.Context, grace time.Duration) (int, error)
}

// StartTurnRecovery は停止したターンを定期的に再開させるジョブを登録して開始します。
// 戻り値の Cron は終了時に Stop する
func StartTurnRecovery(r TurnRecoverer, schedule string, grace time.Duration, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(schedule, func() {
		logger.Debug("停止したターンの確認を開始")
		n, err := r.RecoverStalledTurns(context.Background(), grace)
		if err != nil {
			logger.Error("ターンの復旧に失敗しました", zap.Error(err))
		}
		if n > 0 {
			logger.Info("停止したターンを再開しました", zap.Int("villages", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule turn recovery %q: %w", schedule, err)
	}

	c.Start()
	return c, nil
}
