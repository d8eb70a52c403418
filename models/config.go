package models

import (
	"fmt"
	"strings"
	"time"
)

// TurnEndNotice は「ターン終了」の補助通知を送るタイミングを表します。
type TurnEndNotice string

const (
	TurnEndNoticeOff        TurnEndNotice = "off"         // 送らない
	TurnEndNoticeImmediate  TurnEndNotice = "immediate"   // ターン開始通知の直後
	TurnEndNoticeAfterDelay TurnEndNotice = "after_delay" // 遅延の経過後、次のターンを計算する前
)

// Config 構造体はサーバー全体の設定情報を保持します。
type Config struct {
	Debug    bool           `mapstructure:"debug"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Game     GameConfig     `mapstructure:"game"`
	Push     PushConfig     `mapstructure:"push"`
	Recovery RecoveryConfig `mapstructure:"recovery"`
}

type HTTPConfig struct {
	Addr         string   `mapstructure:"addr"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// PostgresConfig はユーザー情報（デバイストークン）を保持するDBへの接続設定です。
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type GameConfig struct {
	TurnDuration  time.Duration `mapstructure:"turn_duration"`
	TurnEndNotice TurnEndNotice `mapstructure:"turn_end_notice"`
	Locale        string        `mapstructure:"locale"`
}

type PushConfig struct {
	Mode       string        `mapstructure:"mode"` // "websocket" または "gateway"
	GatewayURL string        `mapstructure:"gateway_url"`
	GatewayKey string        `mapstructure:"gateway_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RecoveryConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	Grace    time.Duration `mapstructure:"grace"`
}

const (
	PushModeWebsocket = "websocket"
	PushModeGateway   = "gateway"
)

// Validate は設定値の整合性をチェックします。
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	// cors.New は空のリストや http(s):// で始まらないオリジンで panic する
	if len(c.HTTP.AllowOrigins) == 0 {
		return fmt.Errorf("http.allow_origins must list at least one origin")
	}
	for _, origin := range c.HTTP.AllowOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("http.allow_origins: %q must start with http:// or https://", origin)
		}
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Game.TurnDuration <= 0 {
		return fmt.Errorf("game.turn_duration must be positive, got %s", c.Game.TurnDuration)
	}
	switch c.Game.TurnEndNotice {
	case TurnEndNoticeOff, TurnEndNoticeImmediate, TurnEndNoticeAfterDelay:
	default:
		return fmt.Errorf("game.turn_end_notice must be one of off, immediate, after_delay, got %q", c.Game.TurnEndNotice)
	}
	switch c.Push.Mode {
	case PushModeWebsocket:
	case PushModeGateway:
		if c.Push.GatewayURL == "" {
			return fmt.Errorf("push.gateway_url is required when push.mode is gateway")
		}
	default:
		return fmt.Errorf("push.mode must be websocket or gateway, got %q", c.Push.Mode)
	}
	if c.Recovery.Enabled {
		if c.Recovery.Schedule == "" {
			return fmt.Errorf("recovery.schedule is required when recovery is enabled")
		}
		if c.Recovery.Grace < 0 {
			return fmt.Errorf("recovery.grace must not be negative")
		}
	}
	return nil
}
