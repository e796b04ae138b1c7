package server

import (
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lifehub-app/notify-engine/internal/handler"
	"github.com/lifehub-app/notify-engine/internal/middleware"
)

type Handlers struct {
	Notifications *handler.NotificationHandler
	Preferences   *handler.PreferenceHandler
	Devices       *handler.DeviceHandler
	Live          *handler.WSHandler
}

type Server struct {
	engine *gin.Engine
}

func NewServer(h Handlers, jwtSecret string) *Server {
	router := gin.New()

	setupCORS(router)

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	authMiddleware := middleware.NewAuthMiddleware(jwtSecret)

	api := router.Group("/api")

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Notification routes
		protected.POST("/notifications", h.Notifications.Create)
		protected.GET("/notifications", h.Notifications.List)
		protected.GET("/notifications/unread-count", h.Notifications.UnreadCount)
		protected.GET("/notifications/stats", h.Notifications.Stats)
		protected.PUT("/notifications/:id/read", h.Notifications.MarkAsRead)
		protected.PUT("/notifications/read", h.Notifications.MarkManyAsRead)
		protected.PUT("/notifications/read-all", h.Notifications.MarkAllAsRead)
		protected.DELETE("/notifications/:id", h.Notifications.Delete)
		protected.POST("/notifications/system", h.Notifications.SystemBroadcast)
		protected.GET("/notifications/ws", h.Live.Connect)

		// Preference routes
		protected.GET("/preferences", h.Preferences.Get)
		protected.PUT("/preferences", h.Preferences.Update)

		// Device routes
		protected.POST("/devices", h.Devices.Register)
		protected.DELETE("/devices", h.Devices.Unregister)
		protected.GET("/devices", h.Devices.List)

		// Upstream hook: entity finished, drop its reminder state
		protected.POST("/entities/:id/completed", h.Notifications.EntityCompleted)
	}

	return &Server{engine: router}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func setupCORS(router *gin.Engine) {
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
