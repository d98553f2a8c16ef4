package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LENAX/grade-engine/pkg/api/dto"
	"github.com/LENAX/grade-engine/pkg/core/engine"
)

// PlanHandler 评分计划 API处理器
type PlanHandler struct {
	engine *engine.Engine
}

// NewPlanHandler 创建PlanHandler
func NewPlanHandler(eng *engine.Engine) *PlanHandler {
	return &PlanHandler{engine: eng}
}

// List 列出所有评分计划
// GET /api/v1/plans
func (h *PlanHandler) List(c *gin.Context) {
	infos := h.engine.Plans()
	items := make([]dto.PlanSummary, len(infos))
	for i, info := range infos {
		items[i] = dto.FromPlanInfo(info)
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.PlanSummary]{
		Total: len(items),
		Items: items,
	}))
}

// Grade 对单个评分对象评分
// POST /api/v1/plans/:name/grade
// 评分失败时返回 422，Data 中携带失败的评分记录
func (h *PlanHandler) Grade(c *gin.Context) {
	name := c.Param("name")

	var req dto.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	run, err := h.engine.Grade(c.Request.Context(), name, req.Subject)
	if errors.Is(err, engine.ErrPlanNotFound) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, err.Error()))
		return
	}
	if errors.Is(err, engine.ErrEngineStopped) {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(503, err.Error()))
		return
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.APIResponse[dto.RunDetail]{
			Code:    422,
			Message: err.Error(),
			Data:    dto.FromGradeRun(run),
		})
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromGradeRun(run)))
}

// Batch 批量评分
// POST /api/v1/plans/:name/batch
func (h *PlanHandler) Batch(c *gin.Context) {
	name := c.Param("name")

	var req dto.BatchGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	result, err := h.engine.GradeBatch(c.Request.Context(), name, req.Subjects)
	if errors.Is(err, engine.ErrPlanNotFound) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, err.Error()))
		return
	}
	if errors.Is(err, engine.ErrEngineStopped) {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(503, err.Error()))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, err.Error()))
		return
	}

	resp := dto.BatchResponse{
		Plan:      result.Plan,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Runs:      make([]dto.RunDetail, len(result.Runs)),
	}
	for i, run := range result.Runs {
		resp.Runs[i] = dto.FromGradeRun(run)
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// Runs 评分计划的历史记录
// GET /api/v1/plans/:name/runs
func (h *PlanHandler) Runs(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.engine.GetPlan(name); err != nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, err.Error()))
		return
	}

	var query dto.ListQueryRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("查询参数错误: %v", err)))
		return
	}

	limit := query.GetDefaultLimit()
	// 多取一条用于判断 has_more
	runs, err := h.engine.ListRuns(c.Request.Context(), name, query.Offset+limit+1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("查询评分记录失败: %v", err)))
		return
	}

	items := make([]dto.RunDetail, 0, limit)
	for i := query.Offset; i < len(runs) && len(items) < limit; i++ {
		items = append(items, dto.FromGradeRun(runs[i]))
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.RunDetail]{
		Total:   len(items),
		Items:   items,
		HasMore: len(runs) > query.Offset+limit,
	}))
}
