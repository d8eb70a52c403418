package middlewares

import (
	"net/http"

	"villageserver/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminSubjectKey は認証済みの管理者名を gin.Context に保存するキー
const AdminSubjectKey = "AdminSubject"

// AdminAuth は管理者トークンを検証するミドルウェア
func AdminAuth(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Warn("Authorizationヘッダーがありません", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := auth.ParseAdminToken(secret, token)
		if err != nil {
			logger.Warn("認証失敗", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(AdminSubjectKey, claims.Subject)
		c.Next()
	}
}
