package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New constructs and returns a configured Echo instance.
func New(h *Handlers, allowedOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Client-Token", playerHeader},
	}))
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/api/v1/healthz", h.handleHealthz)

	g := e.Group("/api/v1/games")
	g.POST("", h.handleCreateGame)
	g.GET("/:game_id", h.handleGetGame)
	g.GET("/:game_id/sgf", h.handleGetSGF)
	g.GET("/:game_id/ws", h.handleWatch(newUpgrader(allowedOrigins)))
	g.POST("/:game_id/start", h.gameAction(h.actions.Start))
	g.POST("/:game_id/moves", h.handleSubmitMove)
	g.PUT("/:game_id/premove", h.handleSetPremove)
	g.DELETE("/:game_id/premove", h.handleCancelPremove)
	g.POST("/:game_id/resign", h.gameAction(h.actions.Resign))
	g.POST("/:game_id/cancel", h.gameAction(h.actions.Cancel))
	g.POST("/:game_id/takeback", h.gameAction(h.actions.RequestTakeback))
	g.POST("/:game_id/takeback/answer", h.handleAnswerTakeback)

	return e
}
