package village

import (
	"context"
	"fmt"

	"villageserver/models"

	"go.uber.org/zap"
)

// TeardownVillage は村に紐づく状態をひとつの更新でまとめて削除します。
func (e *Engine) TeardownVillage(ctx context.Context, village string) error {
	paths := models.VillageStatePaths(village)
	values := make(map[string]any, len(paths))
	for _, p := range paths {
		values[p] = nil
	}
	if err := e.store.Update(ctx, values); err != nil {
		return fmt.Errorf("tear down %s: %w", village, err)
	}
	e.logger.Info("村の状態を削除しました", zap.String("village", village))
	return nil
}
