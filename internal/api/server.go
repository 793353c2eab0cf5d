// Package api exposes the HTTP interface: the platform webhook, operator
// authentication, and bot/keyword/message management.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"autoreply/internal/auth"
	"autoreply/internal/pipeline"
	"autoreply/internal/storage"
	"autoreply/internal/webhook"
)

const serviceName = "Instagram Chatbot Platform API"

// EventProcessor handles parsed webhook events.
type EventProcessor interface {
	Process(ctx context.Context, events []webhook.InboundEvent) pipeline.Summary
}

// Options configures a Server.
type Options struct {
	VerifyToken string
	CORSOrigins []string
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	store       storage.Storage
	processor   EventProcessor
	tokens      *auth.TokenIssuer
	verifyToken string
	corsOrigins map[string]bool
	log         *slog.Logger
}

// New creates a Server.
func New(store storage.Storage, processor EventProcessor, tokens *auth.TokenIssuer, log *slog.Logger, opts Options) *Server {
	origins := make(map[string]bool, len(opts.CORSOrigins))
	for _, o := range opts.CORSOrigins {
		origins[o] = true
	}
	return &Server{
		store:       store,
		processor:   processor,
		tokens:      tokens,
		verifyToken: opts.VerifyToken,
		corsOrigins: origins,
		log:         log.With("component", "api"),
	}
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), s.recovery(), s.accessLog(), s.cors())

	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.GET("/webhook", s.handleVerify)
	api.POST("/webhook", s.handleDelivery)

	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("", s.requireAuth())
	authed.GET("/auth/me", s.handleMe)

	authed.GET("/chatbots", s.handleListBots)
	authed.POST("/chatbots", s.handleCreateBot)
	authed.GET("/chatbots/:id", s.handleGetBot)
	authed.PUT("/chatbots/:id", s.handleUpdateBot)
	authed.DELETE("/chatbots/:id", s.handleDeleteBot)
	authed.GET("/chatbots/:id/keywords", s.handleListKeywords)
	authed.GET("/chatbots/:id/messages", s.handleListMessages)

	authed.POST("/keywords", s.handleCreateKeyword)
	authed.PUT("/keywords/:id", s.handleUpdateKeyword)
	authed.DELETE("/keywords/:id", s.handleDeleteKeyword)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "Not Found")
	})

	return r
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": serviceName})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.log.Error("health check", "error", err)
		writeError(c, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": serviceName})
}
