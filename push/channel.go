// Package push はプレイヤーの端末への通知配信を扱います。
package push

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message はプッシュ通知の内容
type Message struct {
	ID     string            `json:"id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
	SentAt time.Time         `json:"sentAt"`
}

func NewMessage(title, body string) Message {
	return Message{
		ID:     uuid.NewString(),
		Title:  title,
		Body:   body,
		SentAt: time.Now().UTC(),
	}
}

// Channel は通知先アドレス（デバイストークン）の集合へメッセージを届けます。
// Send は配信の試行が終わった時点で戻る。配信は best-effort で、
// 一部または全部の失敗はエラーとして返される
type Channel interface {
	Send(ctx context.Context, addrs []string, msg Message) error
}
