package village

import (
	"context"
	"fmt"
	"math/rand"

	"villageserver/models"
	"villageserver/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Assign はプレイヤーと役職の一様ランダムな全単射を作ります。
// 役職の合計人数とプレイヤー数が一致しない場合は false を返し、何も割り当てない
func Assign(players []string, spec models.RoleSpec, rng *rand.Rand) (map[string]string, bool) {
	roles, ok := spec.Expand(len(players))
	if !ok {
		return nil, false
	}
	assignment := make(map[string]string, len(players))
	for _, p := range players {
		if _, dup := assignment[p]; dup {
			return nil, false
		}
		assignment[p] = ""
	}

	rng.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})
	for i, p := range players {
		assignment[p] = roles[i]
	}
	return assignment, true
}

// AssignRoles は村のゲーム開始時に役職を割り当て、割り当て結果の保存と
// 空き村マーカーの削除をひとつの更新で行います。
// 条件が揃っていない場合（人数不足など）は何も書き込まない
func (e *Engine) AssignRoles(ctx context.Context, village string) error {
	var rolesSnap, playersSnap store.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rolesSnap, err = e.store.Get(gctx, models.RolesPath(village))
		return err
	})
	g.Go(func() (err error) {
		playersSnap, err = e.store.Get(gctx, models.PlayersPath(village))
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("read roles and players of %s: %w", village, err)
	}

	logger := e.logger.With(zap.String("village", village))
	if !rolesSnap.HasChildren() || !playersSnap.HasChildren() {
		logger.Debug("役職またはプレイヤーが未設定のため割り当てを保留")
		return nil
	}

	var spec models.RoleSpec
	if err := rolesSnap.Decode(&spec); err != nil {
		logger.Warn("役職設定を解析できません", zap.Error(err))
		return nil
	}
	var roster models.Roster
	if err := playersSnap.Decode(&roster); err != nil {
		logger.Warn("プレイヤー一覧を解析できません", zap.Error(err))
		return nil
	}

	assignment, ok := Assign(roster.Players(), spec, e.NewRand())
	if !ok {
		logger.Debug("プレイヤー数と役職数が一致しないため割り当てを保留", zap.Int("players", len(roster)))
		return nil
	}

	if err := e.store.Update(ctx, map[string]any{
		models.PlayersPath(village): assignment,
		models.FreePath(village):    nil,
	}); err != nil {
		return fmt.Errorf("persist role assignment of %s: %w", village, err)
	}
	logger.Info("役職を割り当てました", zap.Int("players", len(assignment)))
	return nil
}
