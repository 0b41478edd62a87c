package main

import (
	"github.com/gin-gonic/gin"

	"github.com/codehive/backend/internal/middleware"
	"github.com/codehive/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Stricter limit on credential endpoints
	authLimiter := middleware.NewRateLimiter(5, 10)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "codehive"})
	})

	// WebSocket endpoint authenticates via token query parameter, since
	// browsers cannot set headers on websocket connections.
	r.GET("/ws", svc.wsHandler.Serve)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.POST("/login", svc.authHandler.Login)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		protected.Use(middleware.AuditLog())
		{
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)

			// Projects
			protected.GET("/projects", svc.projectHandler.List)
			protected.POST("/projects", svc.projectHandler.Create)
			protected.POST("/projects/clone", svc.projectHandler.Clone)
			protected.GET("/projects/:id", svc.projectHandler.GetByID)
			protected.POST("/projects/:id/collaborators", svc.projectHandler.AddCollaborator)
			protected.POST("/projects/:id/branches", svc.projectHandler.CreateBranch)

			// Branch file surface
			protected.GET("/projects/:id/files/:branch", svc.fileHandler.Tree)
			protected.GET("/projects/:id/files/:branch/*path", svc.fileHandler.Read)
			protected.POST("/projects/:id/files/:branch/create", svc.fileHandler.Create)
			protected.PUT("/projects/:id/files/:branch/rename", svc.fileHandler.Rename)
			protected.DELETE("/projects/:id/files/:branch/*path", svc.fileHandler.Delete)

			// Change review
			protected.GET("/changes/:projectId/:branch", svc.changeHandler.List)
			protected.POST("/changes", svc.changeHandler.Submit)
			protected.POST("/changes/:changeId/approve", svc.changeHandler.Approve)
			protected.POST("/changes/:changeId/reject", svc.changeHandler.Reject)

			// Branch merge
			protected.POST("/projects/:id/merge/:branch", svc.changeHandler.Merge)

			// Activity log
			protected.GET("/activity", svc.activityHandler.List)
		}
	}
}
