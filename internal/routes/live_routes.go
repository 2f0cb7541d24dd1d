package routes

import (
	"github.com/gin-gonic/gin"
)

func LiveRoutes(r *gin.Engine, deps Deps) {
	// Token travels as a query parameter; browsers cannot set headers on
	// WebSocket dials.
	r.GET("/ws/live", deps.Live.HandleLiveWebSocket)
}
