package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultGatewayTimeout = 5 * time.Second

// Gateway は HTTP のプッシュゲートウェイ（FCM legacy 互換の sendToDevice 形式）へ通知を送ります。
type Gateway struct {
	URL    string
	Key    string
	Client *http.Client
}

func NewGateway(url, key string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &Gateway{URL: url, Key: key, Client: &http.Client{Timeout: timeout}}
}

type gatewayRequest struct {
	RegistrationIDs []string            `json:"registration_ids"`
	Notification    gatewayNotification `json:"notification"`
	Data            map[string]string   `json:"data,omitempty"`
}

type gatewayNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type gatewayResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

func (g *Gateway) Send(ctx context.Context, addrs []string, msg Message) error {
	if len(addrs) == 0 {
		return nil
	}
	data := map[string]string{"id": msg.ID}
	for k, v := range msg.Data {
		data[k] = v
	}
	body, err := json.Marshal(gatewayRequest{
		RegistrationIDs: addrs,
		Notification:    gatewayNotification{Title: msg.Title, Body: msg.Body},
		Data:            data,
	})
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.Key != "" {
		req.Header.Set("Authorization", "key="+g.Key)
	}

	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: defaultGatewayTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	var result gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && err != io.EOF {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	if result.Failure > 0 {
		return fmt.Errorf("gateway delivered %d of %d notifications", result.Success, len(addrs))
	}
	return nil
}
