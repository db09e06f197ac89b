package routes

import (
	"emgurus-api/controllers"
	"emgurus-api/middleware"
	"emgurus-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			public.POST("/login", controllers.Login)

			public.GET("/blogs/published", controllers.GetPublishedBlogs)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "EM Gurus API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			// Blog posts
			blogs := protected.Group("/blogs")
			{
				blogs.GET("", controllers.GetMyBlogs)
				blogs.GET("/:id", controllers.GetBlog)
				blogs.POST("", controllers.CreateBlog)
				blogs.PUT("/:id", controllers.UpdateBlog)
				blogs.GET("/:id/notes", controllers.GetReviewNotes(models.ContentKindBlog))

				// Lifecycle transitions
				blogs.POST("/:id/submit", controllers.SubmitContent(models.ContentKindBlog))
				blogs.POST("/:id/assign", middleware.RequireRole(models.RoleAdmin), controllers.AssignContentReviewer(models.ContentKindBlog))
				blogs.POST("/:id/request-changes", controllers.RequestChanges(models.ContentKindBlog))
				blogs.POST("/:id/reject", controllers.RejectContent(models.ContentKindBlog))
				blogs.POST("/:id/publish", controllers.PublishContent(models.ContentKindBlog))
			}

			// Exam questions
			questions := protected.Group("/exam-questions")
			{
				questions.GET("", controllers.GetMyExamQuestions)
				questions.GET("/:id", controllers.GetExamQuestion)
				questions.POST("", controllers.CreateExamQuestion)
				questions.PUT("/:id", controllers.UpdateExamQuestion)
				questions.GET("/:id/notes", controllers.GetReviewNotes(models.ContentKindExamQuestion))

				questions.POST("/:id/submit", controllers.SubmitContent(models.ContentKindExamQuestion))
				questions.POST("/:id/assign", middleware.RequireRole(models.RoleAdmin), controllers.AssignContentReviewer(models.ContentKindExamQuestion))
				questions.POST("/:id/request-changes", controllers.RequestChanges(models.ContentKindExamQuestion))
				questions.POST("/:id/reject", controllers.RejectContent(models.ContentKindExamQuestion))
				questions.POST("/:id/publish", controllers.PublishContent(models.ContentKindExamQuestion))
			}

			// Guru review queue
			guru := protected.Group("/guru")
			guru.Use(middleware.RequireRole(models.RoleGuru, models.RoleAdmin))
			{
				guru.GET("/assignments", controllers.GetMyAssignments)
				guru.POST("/review/save-and-approve", controllers.GuruSaveAndApprove)
				guru.POST("/review/reject", controllers.GuruRejectQuestion)

				// Flags assigned to the guru; the service checks the assignee.
				guru.GET("/flags", controllers.GetMyAssignedFlags)
				guru.POST("/flags/:id/resolve", controllers.ResolveFlag)
				guru.POST("/flags/:id/dismiss", controllers.DismissFlag)
			}

			// Content flags
			protected.POST("/content/:id/flags", controllers.CreateFlag)
			protected.GET("/my-flags", controllers.GetMyFlags)

			// Notifications
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", controllers.GetNotifications)
				notifications.GET("/unread-count", controllers.GetNotificationCounter)
				notifications.PUT("/:id/read", controllers.MarkNotificationRead)
				notifications.PUT("/read-all", controllers.MarkAllNotificationsRead)
				notifications.POST("/dispatch", middleware.RequireRole(models.RoleAdmin), controllers.DispatchNotification)
			}

			// Admin
			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.GET("/review-queue", controllers.GetReviewQueue)
				admin.GET("/content/:id/history", controllers.GetItemHistory)
				admin.POST("/assignments/:id/resolve", controllers.ResolveAssignment)
				admin.GET("/gurus", controllers.GetGurus)

				admin.GET("/flags", controllers.GetFlags)
				admin.POST("/flags/:id/assign", controllers.AssignFlag)
				admin.POST("/flags/:id/resolve", controllers.ResolveFlag)
				admin.POST("/flags/:id/dismiss", controllers.DismissFlag)
				admin.POST("/flags/:id/archive", controllers.ArchiveFlag)
			}
		}
	}
}
