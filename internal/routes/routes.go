package routes

import (
	ginlogger "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"

	"ride_tracker/internal/controllers"
	"ride_tracker/internal/middleware"
)

// Deps carries the constructed controllers into route registration.
// Handlers are methods, not package functions, so nothing here reaches
// for global state.
type Deps struct {
	Auth     *middleware.Auth
	Pairing  *controllers.AuthController
	Session  *controllers.SessionController
	Rides    *controllers.RideController
	Settings *controllers.SettingsController
	Live     *controllers.LiveController
}

// SetupRouter wires every endpoint group. The caller starts the server.
func SetupRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ginlogger.SetLogger())

	AuthRoutes(r, deps)
	SessionRoutes(r, deps)
	RideRoutes(r, deps)
	SettingsRoutes(r, deps)
	LiveRoutes(r, deps)

	return r
}
