package handlers

import (
	"net/http"

	"villageserver/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ArmedCounter は待機中の遅延処理の数を返す（village.TimerScheduler）
type ArmedCounter interface {
	Armed() int64
}

// HealthHandler はストアへの疎通と待機中のターン数を返します。
func HealthHandler(st store.Store, timers ArmedCounter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			logger.Error("ストアに接続できません", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "armedTurns": timers.Armed()})
	}
}
