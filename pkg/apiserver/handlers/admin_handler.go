package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jainyogya07/monolith/pkg/model"
)

// LoadController exposes the stress-injection and telemetry side of the engine.
type LoadController interface {
	SetManualLoad(load float64)
	Snapshot() model.Snapshot
	Starve(d time.Duration) time.Duration
}

type AdminHandler struct {
	engine        LoadController
	blockDuration time.Duration
	logger        *zap.Logger
}

func NewAdminHandler(engine LoadController, blockDuration time.Duration, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{engine: engine, blockDuration: blockDuration, logger: logger}
}

type stressRequest struct {
	Load *float64 `json:"load" binding:"required"`
}

func (h *AdminHandler) Stress(c *gin.Context) {
	var req stressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	h.engine.SetManualLoad(*req.Load)
	c.JSON(http.StatusOK, gin.H{
		"status":      "Manual Load Override Updated",
		"currentLoad": *req.Load,
	})
}

// Block starves the serving goroutine to inject measurable scheduler lag.
func (h *AdminHandler) Block(c *gin.Context) {
	blocked := h.engine.Starve(h.blockDuration)
	c.JSON(http.StatusOK, gin.H{"status": fmt.Sprintf("Blocked for %dms", blocked.Milliseconds())})
}

func (h *AdminHandler) Telemetry(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot())
}
