package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jainyogya07/monolith/pkg/model"
)

// Admitter classifies submitted tasks.
type Admitter interface {
	Submit(ctx context.Context, taskType model.TaskType, payload model.Payload) model.Decision
}

type TaskHandler struct {
	admitter Admitter
	logger   *zap.Logger
}

func NewTaskHandler(admitter Admitter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{admitter: admitter, logger: logger}
}

// Type stays raw so a non-string value scores as STANDARD instead of failing
// the bind.
type taskSubmitRequest struct {
	Type    json.RawMessage `json:"type"`
	Payload model.Payload   `json:"payload"`
}

// Submit answers 200 for both verdicts; a drop is a decision, not an error.
func (h *TaskHandler) Submit(c *gin.Context) {
	var req taskSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	decision := h.admitter.Submit(c.Request.Context(), model.ParseTaskTypeJSON(req.Type), req.Payload)
	c.JSON(http.StatusOK, decision)
}
