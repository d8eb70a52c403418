package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingPeriod   = 10 * time.Second // 10秒ごとにPingを送信
	readDeadline = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// Websocketクライアント。Token が通知先アドレスになる
type client struct {
	id      string
	token   string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// Hub は端末の WebSocket 接続をデバイストークンごとに保持し、通知を配信します。
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Serve は接続を WebSocket にアップグレードし、切断されるまでブロックします。
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, token string) error {
	if token == "" {
		return errors.New("device token is required")
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	c := &client{id: uuid.NewString(), token: token, conn: conn}
	h.register(c)
	h.logger.Info("端末が接続しました", zap.String("clientID", c.id), zap.String("token", token))

	done := make(chan struct{})
	defer func() {
		close(done)
		h.unregister(c)
		conn.Close()
		h.logger.Info("端末が切断されました", zap.String("clientID", c.id))
	}()

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, nil); err != nil {
					h.logger.Warn("Pingの送信に失敗", zap.String("clientID", c.id), zap.Error(err))
					return
				}
			}
		}
	}()

	// 端末からのメッセージは使わないが、Pong と Close を処理するために読み続ける
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("WebSocketの読み取りエラー", zap.String("clientID", c.id), zap.Error(err))
			}
			return nil
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.token]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.token] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.token]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.token)
	}
}

// Connected returns the number of live connections for token.
func (h *Hub) Connected(token string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[token])
}

// Send は接続中の端末にだけ配信します。接続の無いトークンは黙ってスキップする
func (h *Hub) Send(ctx context.Context, addrs []string, msg Message) error {
	payload, err := json.Marshal(struct {
		Type string `json:"type"`
		Message
	}{Type: "notification", Message: msg})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	h.mu.RLock()
	var targets []*client
	for _, addr := range addrs {
		for c := range h.clients[addr] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	var errs []error
	for _, c := range targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.write(websocket.TextMessage, payload); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", c.id, err))
			continue
		}
		h.logger.Debug("通知を送信", zap.String("clientID", c.id), zap.String("messageID", msg.ID))
	}
	return errors.Join(errs...)
}
