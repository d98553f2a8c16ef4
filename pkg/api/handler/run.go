package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LENAX/grade-engine/pkg/api/dto"
	"github.com/LENAX/grade-engine/pkg/core/engine"
)

// RunHandler 评分记录 API处理器
type RunHandler struct {
	engine *engine.Engine
}

// NewRunHandler 创建RunHandler
func NewRunHandler(eng *engine.Engine) *RunHandler {
	return &RunHandler{engine: eng}
}

// Get 查询评分记录
// GET /api/v1/runs/:id
func (h *RunHandler) Get(c *gin.Context) {
	id := c.Param("id")

	run, err := h.engine.GetRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("查询评分记录失败: %v", err)))
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, fmt.Sprintf("评分记录不存在: %s", id)))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromGradeRun(run)))
}
