package handlers

import (
	"net/http"

	"villageserver/push"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleConnections は端末からの WebSocket 接続を受け付け、通知の配信先として登録します。
// 端末は ?token=<デバイストークン> で自分のアドレスを名乗る
func HandleConnections(hub *push.Hub, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
			return
		}
		if err := hub.Serve(c.Writer, c.Request, token); err != nil {
			// アップグレード失敗時は upgrader がレスポンスを書き込み済み
			logger.Warn("WebSocket接続に失敗", zap.Error(err))
		}
	}
}
