package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/auth"
	"github.com/tanq16/vidgrab/internal/extractor"
	"github.com/tanq16/vidgrab/internal/jobs"
	"github.com/tanq16/vidgrab/internal/probe"
	"github.com/tanq16/vidgrab/internal/utils"
	"golang.org/x/time/rate"
)

type Prober interface {
	Probe(ctx context.Context, rawURL string) (*probe.VideoMetadata, error)
}

type Authenticator interface {
	CheckAccess(ctx context.Context, rawURL string) auth.Session
	ObtainCredentials(ctx context.Context, rawURL string) auth.Session
}

type Diagnoser interface {
	Report(ctx context.Context) extractor.Report
}

type Options struct {
	Addr       string
	DefaultDir string
	ProbeRate  float64
	ProbeBurst int
}

type Server struct {
	prober  Prober
	auth    Authenticator
	jobs    *jobs.Manager
	diag    Diagnoser
	options Options
	limiter *rate.Limiter
	engine  *gin.Engine
	http    *http.Server
}

func New(prober Prober, authenticator Authenticator, manager *jobs.Manager, diag Diagnoser, options Options) *Server {
	if options.ProbeRate <= 0 {
		options.ProbeRate = 2
	}
	if options.ProbeBurst < 1 {
		options.ProbeBurst = 1
	}
	s := &Server{
		prober:  prober,
		auth:    authenticator,
		jobs:    manager,
		diag:    diag,
		options: options,
		limiter: rate.NewLimiter(rate.Limit(options.ProbeRate), options.ProbeBurst),
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(loggingMiddleware(utils.GetLogger("server")))
	s.engine.Use(corsMiddleware())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	throttled := api.Group("", s.throttle())
	throttled.GET("/video-info", s.handleVideoInfo)
	throttled.GET("/auth-status", s.handleAuthStatus)
	throttled.POST("/auth-get", s.handleAuthGet)

	api.POST("/download", s.handleDownload)
	api.GET("/default-path", s.handleDefaultPath)
	api.GET("/diagnostics", s.handleDiagnostics)

	api.POST("/jobs", s.handleSubmitJob)
	api.GET("/jobs", s.handleListJobs)
	api.GET("/jobs/:id", s.handleJobStatus)
	api.DELETE("/jobs/:id", s.handleCancelJob)
	api.GET("/jobs/:id/events", s.handleJobEvents)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.options.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("op", "server/run").Msgf("listening on http://%s", s.options.Addr)
		errCh <- s.http.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Str("op", "server/run").Msg("shutting down")
	return s.http.Shutdown(shutdownCtx)
}

func loggingMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().Str("op", "server/request").
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msgf("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// throttle spaces out requests that start an extractor process.
func (s *Server) throttle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.limiter.Wait(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "RATE_LIMITED", "detail": err.Error()})
			return
		}
		c.Next()
	}
}
