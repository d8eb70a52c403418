package village

import (
	"testing"
	"time"

	"villageserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverStalledTurns(t *testing.T) {
	env := newTestEnv(t, fakeUsers{}, Options{TrackDeadlines: true})
	now := env.engine.Now().Unix()
	env.seed(t, map[string]any{
		models.PlayersPath("V1"): map[string]string{"p1": "wolf"},
		models.TokensPath("V1"):  map[string]string{"p1": "t1"},
		// 期限切れで、まだ同じ役職のまま
		models.TurnPath("V1"):     "wolf",
		models.DeadlinePath("V1"): models.TurnDeadline{Role: "wolf", At: now - 300},
		// 期限切れだが、ターンは既に進んでいる
		models.TurnPath("V2"):     "seer",
		models.DeadlinePath("V2"): models.TurnDeadline{Role: "wolf", At: now - 300},
		// 猶予内
		models.TurnPath("V3"):     "wolf",
		models.DeadlinePath("V3"): models.TurnDeadline{Role: "wolf", At: now - 10},
	})
	env.engine.Register(env.store)

	n, err := env.engine.RecoverStalledTurns(env.ctx, 30*time.Second)
	env.store.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sends := env.push.all()
	require.Len(t, sends, 1)
	assert.Equal(t, []string{"t1"}, sends[0].addrs)
	require.Len(t, env.timers.pending(), 1)

	turn, _ := env.get(t, models.TurnPath("V1")).String()
	assert.Equal(t, "wolf", turn)

	var deadline models.TurnDeadline
	require.NoError(t, env.get(t, models.DeadlinePath("V1")).Decode(&deadline))
	assert.Equal(t, now+60, deadline.At, "restarted turn records a fresh deadline")
}

func TestRecoverStalledTurnsIgnoresMalformedDeadline(t *testing.T) {
	env := newTestEnv(t, fakeUsers{}, Options{})
	env.seed(t, map[string]any{
		models.TurnPath("V1"):     "wolf",
		models.DeadlinePath("V1"): "soon",
	})

	n, err := env.engine.RecoverStalledTurns(env.ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, env.spy.recorded())
}

func TestRecoverTurnOutsideOrderOnlyOnce(t *testing.T) {
	env := newTestEnv(t, fakeUsers{}, Options{TrackDeadlines: true})
	start := env.engine.Now()
	env.seed(t, map[string]any{
		models.PlayersPath("V1"):   map[string]string{"p1": "hunter"},
		models.TokensPath("V1"):    map[string]string{"p1": "t1"},
		models.TurnOrderPath("V1"): []string{"wolf", "seer"},
		models.TurnPath("V1"):      "hunter",
		models.DeadlinePath("V1"):  models.TurnDeadline{Role: "hunter", At: start.Unix() - 300},
	})
	env.engine.Register(env.store)

	n, err := env.engine.RecoverStalledTurns(env.ctx, 30*time.Second)
	env.store.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, env.push.all(), 1)

	// 遅延が経過しても次の役職は決まらず、期限も残らない
	env.timers.fireAll(env.ctx)
	env.store.Wait()
	assert.False(t, env.get(t, models.DeadlinePath("V1")).Exists())

	for i := 1; i <= 3; i++ {
		later := start.Add(time.Duration(i) * time.Hour)
		env.engine.Now = func() time.Time { return later }
		n, err := env.engine.RecoverStalledTurns(env.ctx, 30*time.Second)
		env.store.Wait()
		require.NoError(t, err)
		assert.Zero(t, n, "cycle %d", i)
	}
	assert.Len(t, env.push.all(), 1)
	assert.Empty(t, env.timers.pending())
}

func TestRecoverDoesNotRepeatWhenTurnStartIsNoop(t *testing.T) {
	env := newTestEnv(t, fakeUsers{}, Options{TrackDeadlines: true})
	now := env.engine.Now().Unix()
	// 端末が登録されていないのでターン開始は何もしない
	env.seed(t, map[string]any{
		models.TurnPath("V1"):     "wolf",
		models.DeadlinePath("V1"): models.TurnDeadline{Role: "wolf", At: now - 300},
	})
	env.engine.Register(env.store)

	n, err := env.engine.RecoverStalledTurns(env.ctx, 30*time.Second)
	env.store.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, env.get(t, models.DeadlinePath("V1")).Exists())

	n, err = env.engine.RecoverStalledTurns(env.ctx, 30*time.Second)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecoverDropsDeadlineWithoutActiveTurn(t *testing.T) {
	env := newTestEnv(t, fakeUsers{}, Options{TrackDeadlines: true})
	now := env.engine.Now().Unix()
	// 村の削除後に書き込まれた期限
	env.seed(t, map[string]any{
		models.DeadlinePath("V1"): models.TurnDeadline{Role: "wolf", At: now - 300},
	})
	env.engine.Register(env.store)

	n, err := env.engine.RecoverStalledTurns(env.ctx, 30*time.Second)
	env.store.Wait()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, env.get(t, models.DeadlinePath("V1")).Exists())
	assert.Empty(t, env.push.all())

	keys, err := env.store.Keys(env.ctx, models.TurnDeadlineRoot)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
