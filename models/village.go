package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ストア上のパス。Firebase と同じく "/" 区切りの階層構造
const (
	VillagesRoot        = "Villages"
	VillagesPlayingRoot = "VillagesPlaying"
	VillagesFreeRoot    = "VillagesFree"
	VillageRolesRoot    = "VillageRoles"
	VillagePlayerRoot   = "VillagePlayer"
	VillageTokensRoot   = "VillageTokens"
	PlayingTurnRoot     = "PlayingTurn"
	VillageTurnsRoot    = "VillageTurns"
	VillageVotesRoot    = "VillageVotes"
	PlayerStatusRoot    = "PlayerStatus"
	TurnDeadlineRoot    = "TurnDeadline"
)

// 監視パターン
const (
	VillagePattern = VillagesRoot + "/{village}"
	PlayingPattern = VillagesPlayingRoot + "/{village}"
	TurnPattern    = PlayingTurnRoot + "/{village}"
	StatusPattern  = PlayerStatusRoot + "/{village}/{player}"
)

func VillagePath(village string) string { return VillagesRoot + "/" + village }
func PlayingPath(village string) string { return VillagesPlayingRoot + "/" + village }
func FreePath(village string) string { return VillagesFreeRoot + "/" + village }
func RolesPath(village string) string { return VillageRolesRoot + "/" + village }
func PlayersPath(village string) string { return VillagePlayerRoot + "/" + village }
func TokensPath(village string) string { return VillageTokensRoot + "/" + village }
func TurnPath(village string) string { return PlayingTurnRoot + "/" + village }
func TurnOrderPath(village string) string { return VillageTurnsRoot + "/" + village }
func VotesPath(village string) string { return VillageVotesRoot + "/" + village }
func DeadlinePath(village string) string { return TurnDeadlineRoot + "/" + village }
func StatusPath(village, player string) string { return PlayerStatusRoot + "/" + village + "/" + player }

// VillageStatePaths は村の削除時に一括で消すべきパスを返します。
func VillageStatePaths(village string) []string {
	return []string{
		TurnPath(village),
		PlayersPath(village),
		RolesPath(village),
		TurnOrderPath(village),
		PlayingPath(village),
		FreePath(village),
		TokensPath(village),
		VotesPath(village),
		DeadlinePath(village),
	}
}

// RoleCount accepts both JSON numbers and numeric strings.
type RoleCount int

func (c *RoleCount) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := strconv.Atoi(n.String())
		if err != nil {
			return fmt.Errorf("role count %s: %w", data, err)
		}
		*c = RoleCount(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("role count %s is neither number nor string", data)
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("role count %q: %w", s, err)
	}
	*c = RoleCount(v)
	return nil
}

// RoleSpec は役職名 → 必要人数
type RoleSpec map[string]RoleCount

// Expand は役職を人数分だけ並べたスライスを返します。
// 人数が1未満の役職がある、または合計が want と一致しない場合は false。
// 合計は展開前に数えるので、巨大な人数が指定されても確保するのは want 個まで
func (s RoleSpec) Expand(want int) ([]string, bool) {
	if want < 1 {
		return nil, false
	}
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		count := int(s[name])
		if count < 1 || count > want-total {
			return nil, false
		}
		total += count
	}
	if total != want {
		return nil, false
	}

	roles := make([]string, 0, want)
	for _, name := range names {
		for i := 0; i < int(s[name]); i++ {
			roles = append(roles, name)
		}
	}
	return roles, true
}

// Roster は村の参加者。値は役職割り当て前は任意、割り当て後は役職名
type Roster map[string]json.RawMessage

// Players は参加者IDをソートして返します。
func (r Roster) Players() []string {
	players := make([]string, 0, len(r))
	for id := range r {
		players = append(players, id)
	}
	sort.Strings(players)
	return players
}

// RoleOf は割り当て済みの役職名を返します。文字列でなければ false。
func (r Roster) RoleOf(player string) (string, bool) {
	raw, ok := r[player]
	if !ok {
		return "", false
	}
	var role string
	if err := json.Unmarshal(raw, &role); err != nil || role == "" {
		return "", false
	}
	return role, true
}

// Addresses は1プレイヤーの通知先。文字列1つでも配列でも受け付ける
type Addresses []string

func (a *Addresses) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*a = nil
		} else {
			*a = Addresses{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("device address %s: %w", data, err)
	}
	out := many[:0]
	for _, addr := range many {
		if addr != "" {
			out = append(out, addr)
		}
	}
	*a = out
	return nil
}

// DeviceRegistry はプレイヤーID → 通知先
type DeviceRegistry map[string]Addresses

// TurnOrder はターンの順番。配列か、添字をキーにしたオブジェクト（Firebaseの配列表現）を受け付ける
type TurnOrder []string

func (o *TurnOrder) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*o = list
		return nil
	}
	var indexed map[string]string
	if err := json.Unmarshal(data, &indexed); err != nil {
		return fmt.Errorf("turn order %s: %w", data, err)
	}
	type entry struct {
		idx  int
		role string
	}
	entries := make([]entry, 0, len(indexed))
	for k, role := range indexed {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("turn order key %q is not an index", k)
		}
		entries = append(entries, entry{idx, role})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })
	out := make(TurnOrder, len(entries))
	for i, e := range entries {
		out[i] = e.role
	}
	*o = out
	return nil
}

// Next は role の次の役職を返します。role が見つからないか最後なら false。
func (o TurnOrder) Next(role string) (string, bool) {
	for i, r := range o {
		if r != role {
			continue
		}
		if i+1 < len(o) {
			return o[i+1], true
		}
		return "", false
	}
	return "", false
}

// TurnDeadline は停止したターンを検出するための記録
type TurnDeadline struct {
	Role string `json:"role"`
	At   int64  `json:"at"` // Unix秒
}
