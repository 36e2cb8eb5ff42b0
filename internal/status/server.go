// Package status serves a small HTTP view of a running session: health,
// readiness, prometheus metrics, and the session's channel layout.
package status

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/covertfs/internal/observability"
	"github.com/danmuck/covertfs/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Provider reports the session being served.
type Provider interface {
	Status() session.Status
}

type Server struct {
	name     string
	provider Provider
	router   *gin.Engine
	started  time.Time
}

func New(name string, provider Provider, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.ObserveRequests(log.Logger, name))
	if origins := normalizeOrigins(corsOrigins); len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{name: name, provider: provider, router: r, started: time.Now()}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": s.name,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		st := s.provider.Status()
		code := http.StatusOK
		if !st.Connected {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready":   st.Connected,
			"service": s.name,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.provider.Status())
	})
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", addr).Msg("status server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if v := strings.TrimSpace(o); v != "" {
			out = append(out, v)
		}
	}
	return out
}
