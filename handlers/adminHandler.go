package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"villageserver/middlewares"
	"villageserver/models"
	"villageserver/store"
	"villageserver/village"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AdminHandler は運用者向けの村の操作をまとめたもの
type AdminHandler struct {
	Engine *village.Engine
	Store  store.Store
	Logger *zap.Logger
}

type rearmRequest struct {
	Role string `json:"role"`
}

// RearmTurn は止まったターンを再開させます。role を省略すると現在のターンを使う
func (h *AdminHandler) RearmTurn(c *gin.Context) {
	villageID := c.Param("village")
	var req rearmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	err := h.Engine.RearmTurn(c.Request.Context(), villageID, req.Role)
	if errors.Is(err, village.ErrNoActiveTurn) {
		c.JSON(http.StatusConflict, gin.H{"error": "no active turn"})
		return
	}
	if err != nil {
		h.Logger.Error("ターンの再設定に失敗", zap.String("village", villageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rearm turn"})
		return
	}
	h.Logger.Info("管理者がターンを再設定",
		zap.String("village", villageID),
		zap.String("admin", c.GetString(middlewares.AdminSubjectKey)))
	c.JSON(http.StatusAccepted, gin.H{"village": villageID})
}

// DeleteVillage は村のレコードを削除し、後片付けはイベント経由でエンジンに任せます。
func (h *AdminHandler) DeleteVillage(c *gin.Context) {
	villageID := c.Param("village")
	if err := h.Store.Delete(c.Request.Context(), models.VillagePath(villageID)); err != nil {
		h.Logger.Error("村の削除に失敗", zap.String("village", villageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete village"})
		return
	}
	h.Logger.Info("管理者が村を削除",
		zap.String("village", villageID),
		zap.String("admin", c.GetString(middlewares.AdminSubjectKey)))
	c.Status(http.StatusNoContent)
}

// VillageInfo は村に関するすべてのパスの現在値を返します。
func (h *AdminHandler) VillageInfo(c *gin.Context) {
	villageID := c.Param("village")
	paths := append([]string{models.VillagePath(villageID)}, models.VillageStatePaths(villageID)...)

	var mu sync.Mutex
	state := make(map[string]json.RawMessage, len(paths))
	g, ctx := errgroup.WithContext(c.Request.Context())
	for _, p := range paths {
		p := p
		g.Go(func() error {
			snap, err := h.Store.Get(ctx, p)
			if err != nil {
				return err
			}
			if snap.Exists() {
				mu.Lock()
				state[p] = snap.Raw
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.Logger.Error("村の状態の取得に失敗", zap.String("village", villageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read village"})
		return
	}
	if len(state) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "village not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"village": villageID, "state": state})
}
