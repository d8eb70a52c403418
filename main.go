package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"villageserver/auth"
	"villageserver/database" //設定の読み込みとPostgreSQL・Redisの初期化
	"villageserver/handlers" //管理APIとWebSocket接続のルーティング
	"villageserver/models"
	"villageserver/push"    //端末への通知配信
	"villageserver/store"   //村の状態ストアと変更イベント
	"villageserver/utils"   //ロガーの初期化とCronジョブ(停止したターンの復旧)
	"villageserver/village" //ゲーム進行のエンジン

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "villaged",
		Short:         "Village game turn engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to the JSON config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the engine and the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withConfig(configPath, serve)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the users table",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withConfig(configPath, func(cfg models.Config, logger *zap.Logger) error {
					db, err := database.InitPostgreSQL(cfg, logger)
					if err != nil {
						return err
					}
					return database.AutoMigrate(db, logger)
				})
			},
		},
		newTokenCmd(&configPath),
	)
	return root
}

func newTokenCmd(configPath *string) *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin token for the /admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := database.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			token, err := auth.IssueAdminToken(cfg.JWT.Secret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "name recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func withConfig(path string, run func(models.Config, *zap.Logger) error) error {
	config, err := database.LoadConfig(path)
	if err != nil {
		return err
	}
	logger, err := utils.InitLogger(config.Debug) // ロガーの初期化
	if err != nil {
		return err
	}
	defer logger.Sync() // ロガーのクリーンアップ
	return run(config, logger)
}

func serve(config models.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 非同期でPostgreSQLとRedisの初期化
	var db *gorm.DB
	var rdb *redis.Client
	var dbErr, rdbErr error
	done := make(chan bool)

	go func() {
		db, dbErr = database.InitPostgreSQL(config, logger)
		done <- true
	}()

	go func() {
		rdb, rdbErr = database.InitRedis(ctx, config, logger)
		done <- true
	}()

	// 2つの初期化が完了するのを待つ
	<-done
	<-done
	if err := errors.Join(dbErr, rdbErr); err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return fmt.Errorf("初期化に失敗しました: %w", err)
	}
	defer rdb.Close()

	st := store.NewRedisStore(rdb, config.Redis.Prefix, logger)

	var hub *push.Hub
	var channel push.Channel
	switch config.Push.Mode {
	case models.PushModeGateway:
		channel = push.NewGateway(config.Push.GatewayURL, config.Push.GatewayKey, config.Push.Timeout)
	default:
		hub = push.NewHub(logger)
		channel = hub
	}

	timers := village.NewTimerScheduler()
	engine := village.New(st, channel, database.NewUserLookup(db), timers, logger, village.Options{
		TurnDuration:   config.Game.TurnDuration,
		TurnEndNotice:  config.Game.TurnEndNotice,
		Locale:         config.Game.Locale,
		TrackDeadlines: config.Recovery.Enabled,
	})
	engine.Register(st)

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- st.Run(ctx)
	}()

	// クーロンスケジューラのセットアップと呼び出し
	var recovery *cron.Cron
	if config.Recovery.Enabled {
		var err error
		recovery, err = utils.StartTurnRecovery(engine, config.Recovery.Schedule, config.Recovery.Grace, logger)
		if err != nil {
			return err
		}
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Engine:       engine,
		Store:        st,
		Timers:       timers,
		Hub:          hub,
		JWTSecret:    config.JWT.Secret,
		AllowOrigins: config.HTTP.AllowOrigins,
		Logger:       logger,
	})
	server := &http.Server{Addr: config.HTTP.Addr, Handler: router}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTPサーバーを起動します", zap.String("addr", config.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("終了シグナルを受信しました")
	case err := <-serverErr:
		runErr = fmt.Errorf("HTTPサーバーが停止しました: %w", err)
	case err := <-watchErr:
		if err != nil && ctx.Err() == nil {
			runErr = fmt.Errorf("変更イベントの購読が停止しました: %w", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTPサーバーの停止に失敗", zap.Error(err))
	}
	if recovery != nil {
		<-recovery.Stop().Done()
	}
	// 待機中のターンは破棄される。再起動後は復旧ジョブが拾う
	timers.Stop()
	st.Wait()
	logger.Info("サーバーを停止しました")
	return runErr
}
