package models

import "strings"

// StatusKind はプレイヤーに起きた出来事の種類
type StatusKind string

const (
	StatusDeath StatusKind = "DEATH"
	StatusMayor StatusKind = "MAYOR"
	StatusLoved StatusKind = "LOVED"
)

// 死因・就任理由
const (
	CauseVillage = "VILLAGE"
	CauseWitch   = "WITCH"
)

// StatusEvent はステータス文字列の最後の区切りを解析したもの。
// 例: "JOINED: DEATH-VILLAGE" → {Kind: DEATH, Detail: VILLAGE}
type StatusEvent struct {
	Kind   StatusKind
	Detail string
}

// ParseStatus は ":" 区切りの最後のセグメントだけを見て、"KIND-DETAIL" に分解します。
// 解析できない場合は false を返します（エラーではない）。
func ParseStatus(status string) (StatusEvent, bool) {
	segments := strings.Split(status, ":")
	last := strings.TrimSpace(segments[len(segments)-1])
	if last == "" {
		return StatusEvent{}, false
	}
	kind, detail, _ := strings.Cut(last, "-")
	kind = strings.ToUpper(strings.TrimSpace(kind))
	if kind == "" {
		return StatusEvent{}, false
	}
	return StatusEvent{Kind: StatusKind(kind), Detail: strings.TrimSpace(detail)}, true
}

// Cause は大文字に正規化した詳細（死因など）を返します。
func (e StatusEvent) Cause() string {
	return strings.ToUpper(e.Detail)
}
