package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raghavpatnecha/mnemosyne/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		errorHandlingMiddleware(handler.logger),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
	)

	api := router.Group("/api/v1")
	{
		api.POST("/auth/register", handler.Register)

		protected := api.Group("/")
		protected.Use(authMiddleware(handler.authSvc))
		{
			collections := protected.Group("/collections")
			{
				collections.POST("", handler.CreateCollection)
				collections.GET("", handler.ListCollections)
				collections.GET("/:id", handler.GetCollection)
				collections.PATCH("/:id", handler.UpdateCollection)
				collections.DELETE("/:id", handler.DeleteCollection)
			}

			documents := protected.Group("/documents")
			{
				documents.POST("", requireScope("documents:write"), handler.UploadDocument)
				documents.GET("", requireScope("documents:read"), handler.ListDocuments)
				documents.GET("/:id", requireScope("documents:read"), handler.GetDocument)
				documents.PATCH("/:id", requireScope("documents:write"), handler.PatchDocument)
				documents.DELETE("/:id", requireScope("documents:write"), handler.DeleteDocument)
				documents.GET("/:id/status", requireScope("documents:read"), handler.DocumentStatus)
				documents.GET("/:id/url", requireScope("documents:read"), handler.DocumentURL)
			}

			protected.POST("/retrievals", requireScope("retrievals:read"), handler.Retrieve)

			chatRoutes := protected.Group("/chat")
			chatRoutes.Use(requireScope("chat:write"))
			{
				chatRoutes.POST("", handler.Chat)
				chatRoutes.GET("/sessions", handler.ListChatSessions)
				chatRoutes.GET("/sessions/:id/messages", handler.ListChatMessages)
				chatRoutes.DELETE("/sessions/:id", handler.DeleteChatSession)
			}
		}
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
