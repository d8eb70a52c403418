package village

import (
	"errors"
	"testing"

	"villageserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusNotifications(t *testing.T) {
	cases := []struct {
		name   string
		status string
		title  string
		body   string
	}{
		{"death by village vote", "JOINED: DEATH-VILLAGE", "Has muerto", "El pueblo ha decidido ahorcarte"},
		{"death by witch", "JOINED: DEATH-WITCH", "Has muerto", "La bruja te ha envenenado"},
		// 未知の死因は狼による死亡として扱う
		{"death by werewolf falls back to wolves", "JOINED: DEATH-WEREWOLF", "Has muerto", "Los lobos te han devorado"},
		{"death by unknown cause falls back to wolves", "JOINED: DEATH-HUNTER", "Has muerto", "Los lobos te han devorado"},
		{"elected mayor", "JOINED: MAYOR-VILLAGE", "Eres el alcalde", "El pueblo te ha elegido alcalde"},
		{"mayor by succession", "JOINED: MAYOR-p7", "Eres el alcalde", "El alcalde anterior te ha nombrado su sucesor"},
		{"loved", "JOINED: LOVED-Bob", "Te has enamorado", "Cupido te ha unido a Bob"},
		{"only the last segment counts", "JOINED: LOVED-Bob: DEATH-VILLAGE", "Has muerto", "El pueblo ha decidido ahorcarte"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, fakeUsers{addrs: map[string]string{"p1": "addr1"}}, Options{})
			require.NoError(t, env.engine.NotifyStatus(env.ctx, "V1", "p1", tc.status))

			sends := env.push.all()
			require.Len(t, sends, 1)
			assert.Equal(t, []string{"addr1"}, sends[0].addrs)
			assert.Equal(t, tc.title, sends[0].msg.Title)
			assert.Equal(t, tc.body, sends[0].msg.Body)
		})
	}
}

func TestStatusLovedBodyContainsPartner(t *testing.T) {
	env := newTestEnv(t, fakeUsers{addrs: map[string]string{"p1": "addr1"}}, Options{Locale: "en"})
	require.NoError(t, env.engine.NotifyStatus(env.ctx, "V1", "p1", "JOINED: LOVED-Bob"))

	sends := env.push.all()
	require.Len(t, sends, 1)
	assert.Equal(t, "You are in love", sends[0].msg.Title)
	assert.Contains(t, sends[0].msg.Body, "Bob")
}

func TestStatusWithoutNotification(t *testing.T) {
	for _, status := range []string{"JOINED", "JOINED: VOTED-p2", "", "JOINED: ", "JOINED: LOVED-"} {
		env := newTestEnv(t, fakeUsers{addrs: map[string]string{"p1": "addr1"}}, Options{})
		require.NoError(t, env.engine.NotifyStatus(env.ctx, "V1", "p1", status), status)
		assert.Empty(t, env.push.all(), status)
	}
}

func TestStatusWithoutAddressIsSkipped(t *testing.T) {
	env := newTestEnv(t, fakeUsers{addrs: map[string]string{"p2": ""}}, Options{})
	require.NoError(t, env.engine.NotifyStatus(env.ctx, "V1", "p1", "JOINED: DEATH-VILLAGE"))
	require.NoError(t, env.engine.NotifyStatus(env.ctx, "V1", "p2", "JOINED: DEATH-VILLAGE"))
	assert.Empty(t, env.push.all())
}

func TestStatusExternalFailuresPropagate(t *testing.T) {
	lookupErr := errors.New("lookup down")
	env := newTestEnv(t, fakeUsers{err: lookupErr}, Options{})
	assert.ErrorIs(t, env.engine.NotifyStatus(env.ctx, "V1", "p1", "JOINED: DEATH-VILLAGE"), lookupErr)

	sendErr := errors.New("send failed")
	env = newTestEnv(t, fakeUsers{addrs: map[string]string{"p1": "addr1"}}, Options{})
	env.push.err = sendErr
	assert.ErrorIs(t, env.engine.NotifyStatus(env.ctx, "V1", "p1", "JOINED: DEATH-VILLAGE"), sendErr)
}

func TestStatusReactsOnlyToEdits(t *testing.T) {
	env := newTestEnv(t, fakeUsers{addrs: map[string]string{"p1": "addr1"}}, Options{})
	env.engine.Register(env.store)

	path := models.StatusPath("V1", "p1")
	// 最初の書き込み（参加）は通知しない
	require.NoError(t, env.store.Set(env.ctx, path, "JOINED: DEATH-VILLAGE"))
	env.store.Wait()
	assert.Empty(t, env.push.all())

	require.NoError(t, env.store.Set(env.ctx, path, "JOINED: DEATH-VILLAGE: LOVED-Bob"))
	env.store.Wait()
	require.Len(t, env.push.all(), 1)
	assert.Contains(t, env.push.all()[0].msg.Body, "Bob")

	require.NoError(t, env.store.Delete(env.ctx, path))
	env.store.Wait()
	assert.Len(t, env.push.all(), 1)
}
