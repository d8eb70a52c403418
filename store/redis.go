package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// updateScript は複数キーの書き込みと変更通知の PUBLISH をひとつのスクリプトで行います。
// KEYS: 対象キー / ARGV[1]: チャンネル / ARGV[2]: プレフィックス長 / 以降 (op, value) の組
var updateScript = redis.NewScript(`
local channel = ARGV[1]
local plen = tonumber(ARGV[2])
local changed = 0
for i, key in ipairs(KEYS) do
  local op = ARGV[1 + i * 2]
  local val = ARGV[2 + i * 2]
  local old = redis.call('GET', key)
  local emit = false
  if op == 'del' then
    if old then
      redis.call('DEL', key)
      emit = true
    end
  elseif old ~= val then
    redis.call('SET', key, val)
    emit = true
  end
  if emit then
    local ev = {path = string.sub(key, plen + 1)}
    if old then ev.before = old end
    if op ~= 'del' then ev.after = val end
    redis.call('PUBLISH', channel, cjson.encode(ev))
    changed = changed + 1
  end
end
return changed
`)

// envelope は updateScript が PUBLISH するメッセージ
type envelope struct {
	Path   string  `json:"path"`
	Before *string `json:"before"`
	After  *string `json:"after"`
}

// RedisStore は Redis をバックエンドにした Store。
// 値は "<prefix><path>" のキーに JSON 文字列として保存し、変更は "<prefix>changes" チャンネルに流す
type RedisStore struct {
	*dispatcher
	rdb     *redis.Client
	prefix  string
	channel string
	logger  *zap.Logger
}

func NewRedisStore(rdb *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		dispatcher: newDispatcher(logger),
		rdb:        rdb,
		prefix:     prefix,
		channel:    prefix + "changes",
		logger:     logger,
	}
}

func (s *RedisStore) key(path string) string {
	return s.prefix + normalize(path)
}

func (s *RedisStore) Get(ctx context.Context, path string) (Snapshot, error) {
	path = normalize(path)
	raw, err := s.rdb.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{Path: path}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis get %s: %w", path, err)
	}
	return Snapshot{Path: path, Raw: raw}, nil
}

func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	return s.Update(ctx, map[string]any{path: nil})
}

func (s *RedisStore) Update(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	paths := make([]string, 0, len(values))
	for path := range values {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	keys := make([]string, 0, len(paths))
	args := []interface{}{s.channel, len(s.prefix)}
	for _, path := range paths {
		raw, err := encode(values[path])
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		keys = append(keys, s.key(path))
		if raw == nil {
			args = append(args, "del", "")
		} else {
			args = append(args, "set", string(raw))
		}
	}
	if err := updateScript.Run(ctx, s.rdb, keys, args...).Err(); err != nil {
		return fmt.Errorf("redis update %s: %w", strings.Join(paths, ","), err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := s.key(prefix)
	if normalize(prefix) != "" {
		match += "/"
	}
	var keys []string
	iter := s.rdb.Scan(ctx, 0, match+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Run は変更チャンネルを購読し、ctx が終了するまでハンドラーへ配信します。
func (s *RedisStore) Run(ctx context.Context) error {
	pubsub := s.rdb.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.logger.Info("Redisの変更チャンネルを購読開始", zap.String("channel", s.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			ch, err := decodeEnvelope(msg.Payload)
			if err != nil {
				s.logger.Error("変更メッセージのデコードに失敗", zap.Error(err))
				continue
			}
			s.dispatch(ctx, ch)
		}
	}
}

func decodeEnvelope(payload string) (Change, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Change{}, err
	}
	if env.Path == "" {
		return Change{}, fmt.Errorf("change message without path")
	}
	ch := Change{
		Path:   env.Path,
		Before: Snapshot{Path: env.Path},
		After:  Snapshot{Path: env.Path},
	}
	if env.Before != nil {
		ch.Before.Raw = json.RawMessage(*env.Before)
	}
	if env.After != nil {
		ch.After.Raw = json.RawMessage(*env.After)
	}
	return ch, nil
}
