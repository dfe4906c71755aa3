package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"account-console/internal/admin"
	"account-console/internal/domain"
	"account-console/internal/exporter"
	"account-console/internal/repository"
	"account-console/internal/service"
	"account-console/internal/storage"
)

// Options carries the collaborators of Handler. Exports, Exporter and
// Storage are nil when no export bucket is configured.
type Options struct {
	Accounts  service.AccountService
	Admin     *admin.AccountAdmin
	Site      *admin.Site
	Exports   service.ExportService
	Exporter  exporter.Manager
	Storage   storage.Service
	JWTSecret string
	TokenTTL  time.Duration
	Logger    *logrus.Logger
}

// Handler wires HTTP routes to the account console.
type Handler struct {
	accounts  service.AccountService
	admin     *admin.AccountAdmin
	site      *admin.Site
	exports   service.ExportService
	exporter  exporter.Manager
	storage   storage.Service
	jwtSecret string
	tokenTTL  time.Duration
	logger    *logrus.Logger
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	return &Handler{
		accounts:  opts.Accounts,
		admin:     opts.Admin,
		site:      opts.Site,
		exports:   opts.Exports,
		exporter:  opts.Exporter,
		storage:   opts.Storage,
		jwtSecret: opts.JWTSecret,
		tokenTTL:  opts.TokenTTL,
		logger:    opts.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/auth/login", h.login)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}

	console := router.Group("/admin", h.requireStaff())
	{
		console.GET("/", h.index)
		console.GET("/accounts", h.changelist)
		console.GET("/accounts/add", h.addView)
		console.POST("/accounts", h.createAccount)
		console.GET("/accounts/:id", h.changeView)
		console.PUT("/accounts/:id", h.updateAccount)
		console.POST("/accounts/:id/password", h.setPassword)
		console.POST("/accounts/export", h.createExport)
		console.GET("/exports", h.listExports)
		console.GET("/exports/:id", h.getExport)
		console.DELETE("/exports/:id", h.cancelExport)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.site.Models()})
}

// writeError maps service and repository errors onto status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{verr.Field: []string{verr.Message}}})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrAccountExists), errors.Is(err, repository.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		h.logger.WithField("path", c.FullPath()).Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
