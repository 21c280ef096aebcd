package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sinas-io/burrow/pkg/functions"
	"github.com/sinas-io/burrow/pkg/log"
	"github.com/sinas-io/burrow/pkg/metrics"
	"github.com/sinas-io/burrow/pkg/pool"
	"github.com/sinas-io/burrow/pkg/types"
)

// Pool is the slice of the pool manager the API needs
type Pool interface {
	Execute(ctx context.Context, p pool.ExecuteParams) *types.ExecutionResult
	Scale(ctx context.Context, target int) (*types.ScaleReport, error)
	ListWorkers(ctx context.Context) []types.WorkerInfo
	LoadFunctions(ctx context.Context, namespaces []string) (*pool.LoadReport, error)
}

// Server exposes the pool and the function directory over HTTP
type Server struct {
	pool      Pool
	directory functions.Directory
	engine    *gin.Engine
	http      *http.Server
}

// NewServer creates the API server and registers all routes
func NewServer(p Pool, dir functions.Directory) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		pool:      p,
		directory: dir,
		engine:    engine,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.Use(cors.New(cors.Config{
		AllowMethods:     []string{"PUT", "POST", "GET", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		MaxAge: 12 * time.Hour,
	}))
	s.engine.Use(requestMetrics())

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/execute", s.execute)

		workers := v1.Group("/workers")
		{
			workers.GET("", s.listWorkers)
			workers.POST("/scale", s.scaleWorkers)
			workers.POST("/load", s.loadFunctions)
		}

		fns := v1.Group("/functions")
		{
			fns.POST("", s.putFunction)
			fns.GET("", s.listFunctions)
			fns.GET("/:namespace", s.listNamespace)
			fns.GET("/:namespace/:name", s.getFunction)
			fns.DELETE("/:namespace/:name", s.deleteFunction)
		}
	}

	s.engine.GET("/healthz", gin.WrapF(metrics.HealthHandler()))
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// Start serves HTTP on addr until Stop is called
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}
	logger := log.WithComponent("api")
	logger.Info().Str("addr", addr).Msg("HTTP API listening")

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Handler exposes the underlying handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requestMetrics records per-request counters and latency
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.APIRequestsTotal.WithLabelValues(
			c.Request.Method,
			http.StatusText(c.Writer.Status()),
		).Inc()
		metrics.APIRequestDuration.WithLabelValues(c.Request.Method).
			Observe(time.Since(start).Seconds())
	}
}
