// Package store は村の状態を保持する階層型キーバリューストアと、その変更通知を扱います。
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Snapshot はあるパスの値を一度だけ読んだ結果。値が無い場合 Raw は nil
type Snapshot struct {
	Path string
	Raw  json.RawMessage
}

// Exists reports whether the path held a non-null value.
func (s Snapshot) Exists() bool {
	return len(s.Raw) > 0 && !bytes.Equal(bytes.TrimSpace(s.Raw), []byte("null"))
}

// HasChildren reports whether the value is a non-empty JSON object or array.
func (s Snapshot) HasChildren() bool {
	if !s.Exists() {
		return false
	}
	raw := bytes.TrimSpace(s.Raw)
	switch raw[0] {
	case '{':
		var m map[string]json.RawMessage
		return json.Unmarshal(raw, &m) == nil && len(m) > 0
	case '[':
		var l []json.RawMessage
		return json.Unmarshal(raw, &l) == nil && len(l) > 0
	}
	return false
}

// Decode unmarshals the value into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists() {
		return fmt.Errorf("decode %s: no value", s.Path)
	}
	if err := json.Unmarshal(s.Raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return nil
}

// String は値が JSON 文字列の場合にそれを返します。
func (s Snapshot) String() (string, bool) {
	if !s.Exists() {
		return "", false
	}
	var v string
	if err := json.Unmarshal(s.Raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// Transition は変更イベントの種類
type Transition int

const (
	Unchanged Transition = iota
	Created
	Edited
	Deleted
)

func (t Transition) String() string {
	switch t {
	case Created:
		return "created"
	case Edited:
		return "edited"
	case Deleted:
		return "deleted"
	}
	return "unchanged"
}

// Change は監視中のパスで起きた一回の変更
type Change struct {
	Path   string
	Params map[string]string
	Before Snapshot
	After  Snapshot
}

// Transition classifies the change by the existence of the previous and new values.
func (c Change) Transition() Transition {
	before, after := c.Before.Exists(), c.After.Exists()
	switch {
	case !before && after:
		return Created
	case before && after:
		if bytes.Equal(c.Before.Raw, c.After.Raw) {
			return Unchanged
		}
		return Edited
	case before && !after:
		return Deleted
	}
	return Unchanged
}

// Handler は変更を受け取るコールバック。返したエラーはウォッチャーがログに出力する
type Handler func(ctx context.Context, ch Change) error

// Store は村・プレイヤー・役職のデータを保持する外部ストアです。
// 値は JSON として保存され、既存の値と同じ書き込みは変更イベントを発生させません。
type Store interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	// Set replaces the value at path. A nil value deletes it.
	Set(ctx context.Context, path string, value any) error
	Delete(ctx context.Context, path string) error
	// Update applies every entry as one atomic write; nil values delete.
	Update(ctx context.Context, values map[string]any) error
	// Keys lists the stored paths under prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
}

// Watcher は変更通知の購読を登録します。
type Watcher interface {
	Watch(pattern string, h Handler)
}

// encode は値を保存形式に変換します。nil は削除を意味する
func encode(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	return data, nil
}
