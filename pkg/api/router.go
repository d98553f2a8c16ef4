package api

import (
	"github.com/gin-gonic/gin"

	"github.com/LENAX/grade-engine/pkg/api/handler"
	"github.com/LENAX/grade-engine/pkg/api/middleware"
	"github.com/LENAX/grade-engine/pkg/core/engine"
)

// SetupRouter 设置路由
func SetupRouter(eng *engine.Engine, version string) *gin.Engine {
	router := gin.New()

	// 全局中间件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	planHandler := handler.NewPlanHandler(eng)
	runHandler := handler.NewRunHandler(eng)
	eventHandler := handler.NewEventHandler(eng)
	healthHandler := handler.NewHealthHandler(eng, version)

	// 健康检查路由（不带前缀）
	router.GET("/health", healthHandler.Health)

	v1 := router.Group("/api/v1")
	{
		plans := v1.Group("/plans")
		{
			plans.GET("", planHandler.List)
			plans.POST("/:name/grade", planHandler.Grade)
			plans.POST("/:name/batch", planHandler.Batch)
			plans.GET("/:name/runs", planHandler.Runs)
		}

		v1.GET("/runs/:id", runHandler.Get)
		v1.GET("/events/ws", eventHandler.Stream)
	}

	return router
}
