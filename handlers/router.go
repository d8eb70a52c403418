package handlers

import (
	"time"

	"villageserver/middlewares"
	"villageserver/push"
	"villageserver/store"
	"villageserver/utils"
	"villageserver/village"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Engine       *village.Engine
	Store        store.Store
	Timers       ArmedCounter
	Hub          *push.Hub // WebSocket 配信を使わない場合は nil
	JWTSecret    string
	AllowOrigins []string
	Logger       *zap.Logger
}

// NewRouter は HTTP のルーティングを組み立てます。
func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(d.Logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	router.Use(cors.New(cors.Config{
		AllowOrigins:     d.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", HealthHandler(d.Store, d.Timers, d.Logger))
	if d.Hub != nil {
		router.GET("/ws", HandleConnections(d.Hub, d.Logger))
	}

	admin := &AdminHandler{Engine: d.Engine, Store: d.Store, Logger: d.Logger}
	group := router.Group("/admin", middlewares.AdminAuth(d.JWTSecret, d.Logger))
	group.POST("/villages/:village/turn", admin.RearmTurn)
	group.DELETE("/villages/:village", admin.DeleteVillage)
	group.GET("/villages/:village", admin.VillageInfo)

	return router
}
