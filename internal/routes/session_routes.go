package routes

import (
	"github.com/gin-gonic/gin"
)

func SessionRoutes(r *gin.Engine, deps Deps) {
	session := r.Group("/session")
	session.Use(deps.Auth.RequireAuth())
	{
		session.POST("/start", deps.Session.Start)
		session.POST("/pause", deps.Session.Pause)
		session.POST("/resume", deps.Session.Resume)
		session.POST("/stop", deps.Session.Stop)
		session.GET("/status", deps.Session.Status)
	}
}
