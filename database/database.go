package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"villageserver/models"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// EnvPrefix は設定を上書きする環境変数の接頭辞（例: VILLAGE_REDIS_ADDR）
const EnvPrefix = "VILLAGE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allow_origins", []string{"http://localhost:8080"})
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "village:")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.name", "village")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("game.turn_duration", "60s")
	v.SetDefault("game.turn_end_notice", string(models.TurnEndNoticeOff))
	v.SetDefault("game.locale", "es")
	v.SetDefault("push.mode", models.PushModeWebsocket)
	v.SetDefault("push.gateway_url", "")
	v.SetDefault("push.gateway_key", "")
	v.SetDefault("push.timeout", "10s")
	v.SetDefault("recovery.enabled", false)
	v.SetDefault("recovery.schedule", "@every 1m")
	v.SetDefault("recovery.grace", "30s")
}

// LoadConfig loads the configuration from a JSON file, environment variables and defaults.
// 設定ファイルが存在しない場合はデフォルト値と環境変数だけで組み立てる
func LoadConfig(filename string) (models.Config, error) {
	var config models.Config

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			v.SetConfigFile(filename)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return config, fmt.Errorf("read config %s: %w", filename, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return config, fmt.Errorf("stat config %s: %w", filename, err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func InitPostgreSQL(config models.Config, logger *zap.Logger) (*gorm.DB, error) {
	pg := config.Postgres
	dsn := fmt.Sprintf("host=%s user=%s dbname=%s password=%s sslmode=%s",
		pg.Host, pg.User, pg.Name, pg.Password, pg.SSLMode)

	const maxRetries = 3
	const retryInterval = 5 * time.Second
	var err error
	for i := 0; i <= maxRetries; i++ {
		var gormDB *gorm.DB
		gormDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			return gormDB, nil
		}
		logger.Error("データベース接続のリトライ", zap.Int("retry", i), zap.Error(err))
		if i < maxRetries {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
}

// AutoMigrate はユーザーテーブルを作成・更新します。
func AutoMigrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&models.User{}); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	logger.Info("マイグレーション完了")
	return nil
}

func InitRedis(ctx context.Context, config models.Config, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", zap.String("addr", config.Redis.Addr), zap.Error(err))
		_ = rdb.Close()
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", config.Redis.Addr))
	return rdb, nil
}
