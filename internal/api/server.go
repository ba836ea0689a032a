// Package api serves the staff-facing HTTP interface: authentication,
// dialog workflows, uploads, and the SSE live feed.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gramchat/gramchat/internal/avatar"
	"github.com/gramchat/gramchat/internal/config"
	"github.com/gramchat/gramchat/internal/events"
	"github.com/gramchat/gramchat/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sender delivers staff replies to the customer chat. Satisfied by
// *gateway.Manager; tests inject a mock.
type Sender interface {
	Send(ctx context.Context, bot models.Bot, chatID int64, text string) error
}

// Opts holds configuration for the API server.
type Opts struct {
	DB      *gorm.DB
	Config  *config.Config
	Gateway Sender            // optional; replies are stored even without it
	Avatars *avatar.Cache     // optional
	Pub     *events.Publisher // optional
	Logger  *zap.Logger
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts Opts) error {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", opts.Config.Listen.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	opts.Logger.Info("api listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with all routes registered. Exported so
// tests can drive it with httptest.
func NewRouter(opts Opts) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("api: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("api: config is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(opts.Logger))

	registerRoutes(router, &deps{
		db:      opts.DB,
		cfg:     opts.Config,
		gw:      opts.Gateway,
		avatars: opts.Avatars,
		pub:     opts.Pub,
		logger:  opts.Logger,
	})
	return router, nil
}

// deps bundles what handlers need.
type deps struct {
	db      *gorm.DB
	cfg     *config.Config
	gw      Sender
	avatars *avatar.Cache
	pub     *events.Publisher
	logger  *zap.Logger
}

// requestLogger logs each request at debug level with latency and status.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
