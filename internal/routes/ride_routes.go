package routes

import (
	"github.com/gin-gonic/gin"
)

func RideRoutes(r *gin.Engine, deps Deps) {
	rides := r.Group("/rides")
	rides.Use(deps.Auth.RequireAuth())
	{
		rides.GET("", deps.Rides.List)
		rides.GET("/:id", deps.Rides.Get)
		rides.PATCH("/:id", deps.Rides.Update)
		rides.DELETE("/:id", deps.Rides.Delete)
		rides.GET("/:id/gpx", deps.Rides.ExportGPX)
		rides.POST("/:id/clear-review", deps.Rides.ClearReview)
		rides.POST("/sync", deps.Rides.SyncNow)
	}
}
