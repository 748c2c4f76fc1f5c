package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/middleware"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
)

// Routes bundles every API handler with the middleware collaborators.
type Routes struct {
	Auth          *AuthHandler
	Availability  *AvailabilityHandler
	Bookings      *BookingHandler
	Meetings      *MeetingHandler
	Threads       *ThreadHandler
	Notifications *NotificationHandler
	Reviews       *ReviewHandler
	Moderation    *ModerationHandler
	Users         *UserHandler

	Tokens        middleware.TokenValidator
	Audit         middleware.AuditRecorder
	Logger        *zap.Logger
	ExportEnabled bool
}

// Register mounts the API under group.
func (r Routes) Register(group *gin.RouterGroup) {
	auth := group.Group("/auth")
	auth.POST("/login", r.Auth.Login)
	auth.POST("/refresh", r.Auth.Refresh)

	secured := group.Group("", middleware.JWT(r.Tokens))
	secured.POST("/auth/logout", r.Auth.Logout)
	secured.GET("/auth/me", r.Auth.Me)

	secured.GET("/mentors/:id/availability", r.Availability.Get)
	secured.PUT("/mentors/:id/availability",
		middleware.RequireSelfOrRoles(models.RoleAdmin),
		middleware.Audit(r.Audit, r.Logger, models.AuditActionAvailabilityUpdate, "mentor_availability"),
		r.Availability.Update)

	bookings := secured.Group("/bookings")
	bookings.POST("", middleware.RequireRoles(models.RoleStudent), r.Bookings.Create)
	bookings.GET("", r.Bookings.List)
	bookings.GET("/:id", r.Bookings.Get)
	bookings.PATCH("/:id", r.Bookings.Update)

	meetings := secured.Group("/meetings")
	meetings.POST("", middleware.RequireRoles(models.RoleStudent), r.Meetings.Create)
	meetings.GET("/:id", r.Meetings.Get)
	meetings.POST("/:id/terms", r.Meetings.AcceptTerms)
	meetings.POST("/:id/confirm", middleware.RequireRoles(models.RoleOBOG), r.Meetings.Confirm)
	meetings.POST("/:id/complete", r.Meetings.Complete)
	meetings.POST("/:id/no-show", r.Meetings.NoShow)
	meetings.POST("/:id/cancel", r.Meetings.Cancel)
	meetings.POST("/:id/additional-question", middleware.RequireRoles(models.RoleStudent), r.Meetings.AnswerAdditionalQuestion)

	threads := secured.Group("/threads")
	threads.POST("", r.Threads.GetOrCreate)
	threads.GET("", r.Threads.List)
	threads.GET("/:id/messages", r.Threads.Messages)
	threads.POST("/:id/messages", r.Threads.Send)
	threads.GET("/:id/meeting", r.Meetings.GetByThread)

	secured.GET("/notifications", r.Notifications.List)
	secured.POST("/notifications/:id/read", r.Notifications.MarkRead)

	secured.POST("/reviews", middleware.RequireRoles(models.RoleStudent), r.Reviews.Create)
	secured.GET("/users/:id", r.Users.Get)
	secured.GET("/users/:id/reviews", r.Reviews.ListForUser)

	admin := secured.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/users", r.Users.List)
	admin.POST("/users/:id/strikes", r.Moderation.AddStrike)
	admin.DELETE("/users/:id/strikes", r.Moderation.RemoveStrike)
	if r.ExportEnabled {
		admin.GET("/meetings/export", r.Moderation.ExportMeetings)
	}
}
