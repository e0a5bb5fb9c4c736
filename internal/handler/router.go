package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cortexa-labs/ragserve/internal/middleware"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Documents *DocumentHandler
	Chat      *ChatHandler
	History   *HistoryHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", middleware.RateLimit(time.Second), deps.Auth.Register)
	api.POST("/auth/login", middleware.RateLimit(time.Second), deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.POST("/documents", deps.Documents.Upload)
	authGroup.DELETE("/documents/:filename", deps.Documents.Delete)
	authGroup.POST("/documents/ingest", deps.Documents.Ingest)

	authGroup.POST("/chat", deps.Chat.Ask)

	authGroup.GET("/history", deps.History.List)
	authGroup.DELETE("/history", deps.History.Clear)

	api.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
