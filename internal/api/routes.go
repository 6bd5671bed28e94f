package api

import (
	"github.com/gin-gonic/gin"

	"resumedesk/internal/api/middleware"
)

// Handlers 汇总需要注册的处理器；为 nil 的处理器对应的路由不注册。
type Handlers struct {
	Events         *EventHandler
	Admin          *AdminHandler
	Ws             *WsHandler
	InternalSecret string
}

// RegisterRoutes 注册 API 路由。
func RegisterRoutes(router *gin.Engine, h Handlers) {
	v1 := router.Group("/v1")

	if h.Ws != nil {
		v1.GET("/ws", h.Ws.HandleConnection)
	}

	internal := v1.Group("")
	internal.Use(middleware.InternalSecretMiddleware(h.InternalSecret))

	if h.Events != nil {
		events := internal.Group("/events")
		{
			events.POST("", h.Events.PostEvent)
			events.POST("/attachment", h.Events.PostAttachment)
		}
	}

	if h.Admin != nil {
		adminGroup := internal.Group("/admin")
		adminGroup.Use(middleware.OperatorMiddleware())
		{
			adminGroup.GET("/resumes", h.Admin.ListResumes)
			adminGroup.GET("/resumes/:id", h.Admin.GetResume)
			adminGroup.GET("/resumes/:id/audit", h.Admin.GetAuditTrail)
			adminGroup.GET("/stats", h.Admin.GetStats)
			adminGroup.GET("/export", h.Admin.Export)
		}
	}
}
