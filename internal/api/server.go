package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Rishu22889/ai-apply/internal/autopilot"
	"github.com/Rishu22889/ai-apply/internal/history"
	"github.com/Rishu22889/ai-apply/internal/profile"
)

const userHeader = "X-User-ID"

// Server exposes the autopilot over HTTP.
type Server struct {
	orchestrator *autopilot.Orchestrator
	profiles     profile.Store
	ledger       history.Ledger
	defaultUser  string
	logger       *zap.Logger
}

func NewServer(o *autopilot.Orchestrator, profiles profile.Store, ledger history.Ledger, defaultUser string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		orchestrator: o,
		profiles:     profiles,
		ledger:       ledger,
		defaultUser:  defaultUser,
		logger:       log,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	api := r.Group("/api")
	{
		api.POST("/autopilot/trigger", s.triggerAutopilot)
		api.POST("/autopilot/cancel", s.cancelAutopilot)
		api.GET("/autopilot/status", s.autopilotStatus)
		api.GET("/jobs/classified", s.classifiedJobs)
		api.GET("/history/applications", s.listApplications)
		api.GET("/profile", s.getProfile)
		api.PUT("/profile", s.putProfile)
		api.PATCH("/profile", s.patchProfile)
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

// Run serves the API until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("api listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// userID resolves the acting user from the request header, falling back to
// the configured default.
func (s *Server) userID(c *gin.Context) string {
	if id := c.GetHeader(userHeader); id != "" {
		return id
	}
	return s.defaultUser
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, profile.ErrInvalidPatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, autopilot.ErrRunActive), errors.Is(err, autopilot.ErrCooldown):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
