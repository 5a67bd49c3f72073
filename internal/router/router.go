// Package router assembles the HTTP surface.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/authz"
	"github.com/noah-isme/classroom-api/internal/handler"
	"github.com/noah-isme/classroom-api/internal/middleware"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/service"
	"github.com/noah-isme/classroom-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/classroom-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classroom-api/pkg/middleware/requestid"
)

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// Options configures the engine.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Tokens         TokenValidator
}

// Handlers groups every HTTP handler.
type Handlers struct {
	Auth          *handler.AuthHandler
	Assignments   *handler.AssignmentHandler
	Submissions   *handler.SubmissionHandler
	Announcements *handler.AnnouncementHandler
	Discussions   *handler.DiscussionHandler
	Notifications *handler.NotificationHandler
	VoiceCalls    *handler.VoiceCallHandler
	Files         *handler.FileHandler
	Metrics       *handler.MetricsHandler
}

// New builds the gin engine with every route registered.
func New(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
	}
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	api.POST("/register", h.Auth.Register)
	api.POST("/login", h.Auth.Login)
	api.POST("/login/refresh", h.Auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))
	secured.GET("/me", h.Auth.Me)

	secured.GET("/assignments", can(authz.ResourceAssignment, authz.ActionList), h.Assignments.List)
	secured.POST("/assignments", can(authz.ResourceAssignment, authz.ActionCreate), h.Assignments.Create)
	secured.GET("/assignments/:id", can(authz.ResourceAssignment, authz.ActionRead), h.Assignments.Get)
	secured.GET("/assignments/:id/gradebook", can(authz.ResourceAssignment, authz.ActionExport), h.Submissions.Gradebook)

	secured.GET("/submissions", can(authz.ResourceSubmission, authz.ActionList), h.Submissions.List)
	secured.POST("/submissions", can(authz.ResourceSubmission, authz.ActionCreate), h.Submissions.Create)
	secured.GET("/submissions/:id", can(authz.ResourceSubmission, authz.ActionRead), h.Submissions.Get)
	secured.PATCH("/submissions/:id/grade", can(authz.ResourceSubmission, authz.ActionGrade), h.Submissions.Grade)

	secured.GET("/announcements", can(authz.ResourceAnnouncement, authz.ActionList), h.Announcements.List)
	secured.POST("/announcements", can(authz.ResourceAnnouncement, authz.ActionCreate), h.Announcements.Create)
	secured.GET("/announcements/:id", can(authz.ResourceAnnouncement, authz.ActionRead), h.Announcements.Get)
	secured.PUT("/announcements/:id", can(authz.ResourceAnnouncement, authz.ActionUpdate), h.Announcements.Update)
	secured.PATCH("/announcements/:id", can(authz.ResourceAnnouncement, authz.ActionUpdate), h.Announcements.Patch)
	secured.DELETE("/announcements/:id", can(authz.ResourceAnnouncement, authz.ActionDelete), h.Announcements.Delete)

	secured.GET("/discussions", can(authz.ResourceDiscussion, authz.ActionList), h.Discussions.List)
	secured.POST("/discussions", can(authz.ResourceDiscussion, authz.ActionCreate), h.Discussions.Create)
	secured.GET("/discussions/:id", can(authz.ResourceDiscussion, authz.ActionRead), h.Discussions.Get)
	secured.PUT("/discussions/:id", can(authz.ResourceDiscussion, authz.ActionUpdate), h.Discussions.Update)
	secured.PATCH("/discussions/:id", can(authz.ResourceDiscussion, authz.ActionUpdate), h.Discussions.Patch)
	secured.DELETE("/discussions/:id", can(authz.ResourceDiscussion, authz.ActionDelete), h.Discussions.Delete)
	secured.POST("/discussions/:id/reply", can(authz.ResourceDiscussion, authz.ActionReply), h.Discussions.Reply)

	secured.GET("/replies", can(authz.ResourceReply, authz.ActionList), h.Discussions.ListReplies)
	secured.POST("/replies", can(authz.ResourceReply, authz.ActionCreate), h.Discussions.CreateReply)

	secured.GET("/notifications", can(authz.ResourceNotification, authz.ActionList), h.Notifications.Inbox)

	secured.POST("/voice-call/token", can(authz.ResourceVoiceCall, authz.ActionCreate), h.VoiceCalls.Create)
	secured.POST("/voice-call/end", can(authz.ResourceVoiceCall, authz.ActionEnd), h.VoiceCalls.End)

	secured.GET("/files/:token", h.Files.Download)

	return r
}

func can(resource authz.Resource, action authz.Action) gin.HandlerFunc {
	return middleware.Authorize(resource, action)
}
