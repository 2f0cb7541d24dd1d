package routes

import (
	"github.com/gin-gonic/gin"
)

func SettingsRoutes(r *gin.Engine, deps Deps) {
	settings := r.Group("/settings")
	settings.Use(deps.Auth.RequireAuth())
	{
		settings.GET("", deps.Settings.Get)
		settings.PUT("", deps.Settings.Put)
	}
}
