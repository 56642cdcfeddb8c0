package routes

import (
	"net/http"

	"editorial-workflow-api/controllers"
	"editorial-workflow-api/middleware"
	"editorial-workflow-api/models"
	"editorial-workflow-api/monitor"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handlers bundles everything the route table dispatches to.
type Handlers struct {
	Auth          *controllers.AuthController
	Workflow      *controllers.WorkflowController
	Notifications *controllers.NotificationController
	Users         middleware.UserLookup
	Audit         monitor.AuditSource
	DB            *gorm.DB
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	v1 := router.Group("/api/v1")
	{
		public := v1.Group("")
		{
			public.POST("/login", h.Auth.Login)
			public.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{
					"status":  "ok",
					"message": "Editorial Workflow API is running",
				})
			})
		}

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(h.Users))
		{
			protected.GET("/profile", h.Auth.GetProfile)
			protected.PUT("/change-password", h.Auth.ChangePassword)

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notifications.List)
				notifications.GET("/counter", h.Notifications.Counter)
				notifications.PATCH("/read-all", h.Notifications.MarkAllRead)
				notifications.PATCH("/:id/read", h.Notifications.MarkRead)
			}

			submissions := protected.Group("/submissions")
			{
				submissions.POST("", h.Workflow.CreateSubmission)
				submissions.GET("/:id", h.Workflow.GetSubmission)
				submissions.GET("/:id/transitions", h.Workflow.AllowedTransitions)
				submissions.POST("/:id/transitions", h.Workflow.TransitionSubmission)
				submissions.GET("/:id/suggestions", h.Workflow.SuggestReviewers)
				submissions.POST("/:id/rounds", h.Workflow.OpenRound)
				submissions.POST("/:id/rounds/:round/reviewers", h.Workflow.AddReviewer)
				submissions.GET("/:id/rounds/:round/complete", h.Workflow.RoundCompleteness)
				submissions.POST("/:id/rounds/:round/decision", h.Workflow.Decide)
				submissions.GET("/:id/attachments", h.Workflow.ListAttachments)
				submissions.POST("/:id/attachments", h.Workflow.AttachFile)
			}

			assignments := protected.Group("/assignments")
			{
				assignments.POST("/:id/review", h.Workflow.SubmitReview)
				assignments.POST("/:id/rating", h.Workflow.RateReview)
			}

			protected.GET("/reviews/overdue",
				middleware.RequireRole(models.RoleEditor, models.RoleAdmin),
				h.Workflow.ListOverdue)

			reviewers := protected.Group("/reviewers")
			{
				reviewers.GET("", middleware.RequireRole(models.RoleEditor, models.RoleAdmin), h.Workflow.ListReviewers)
				reviewers.PUT("/:id", h.Workflow.UpsertReviewer)
				reviewers.GET("/:id/workload", h.Workflow.GetWorkload)
			}

			protected.GET("/audit", h.Workflow.QueryAudit)

			ops := protected.Group("/ops", middleware.RequireRole(models.RoleAdmin))
			monitor.RegisterRoutes(ops, h.Audit, h.DB)
		}
	}
}
