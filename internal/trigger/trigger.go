package trigger

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AlfredBerg/rootdata-sync/internal/crawl"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Runner runs one scrape pass.
type Runner interface {
	Run(ctx context.Context) crawl.Result
}

type Options struct {
	// Secret is the bearer token a caller must present. An empty secret
	// rejects every call.
	Secret string
	Path   string
}

// Server exposes a cron style endpoint that runs one pass per authorised
// POST. At most one pass runs at a time within the process.
type Server struct {
	runner Runner
	opts   Options
	logger *zap.Logger
	router *gin.Engine

	running sync.Mutex
}

func New(runner Runner, opts Options, logger *zap.Logger) *Server {
	if opts.Path == "" {
		opts.Path = "/api/cron"
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{runner: runner, opts: opts, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Any(opts.Path, s.handleCron)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done and then shuts down, giving an
// in-flight request up to grace to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("trigger listening", zap.String("addr", addr), zap.String("path", s.opts.Path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleCron(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
		return
	}
	if !s.authorized(c.GetHeader("Authorization")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if !s.running.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "a scrape pass is already running"})
		return
	}
	defer s.running.Unlock()

	// the pass keeps going when the caller hangs up; its files and the remote
	// store must not be left half written
	res := s.runner.Run(context.WithoutCancel(c.Request.Context()))
	if res.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error, "result": res})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

func (s *Server) authorized(header string) bool {
	if s.opts.Secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.Secret)) == 1
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
