// Package httpserver serves the Recall HTTP API: RQL queries, ingest,
// export, sessions, saved searches and the MCP tool endpoints.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/brainz-lab/recall/internal/ingest"
	"github.com/brainz-lab/recall/internal/mcp"
	"github.com/brainz-lab/recall/internal/metrics"
	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/rql"
	"github.com/brainz-lab/recall/internal/savedsearch"
	"github.com/gin-gonic/gin"
)

// maxBodyBytes bounds ingest and RPC request bodies.
const maxBodyBytes = 10 << 20

// Store is the store contract required by the HTTP API.
type Store interface {
	rql.Source
	model.LogLookup
	model.SessionStore
}

// Config holds the API settings.
type Config struct {
	Addr string
	// APIKey unlocks every route; IngestKey unlocks ingest routes only.
	// Routes are open when no key guards them.
	APIKey    string
	IngestKey string

	DefaultLimit  int
	MaxLimit      int
	ExportMaxRows int
	Project       string
	Version       string
	Metrics       bool
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "0.0.0.0:3000"
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = model.DefaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = model.MaxLimit
	}
	if c.DefaultLimit > c.MaxLimit {
		c.DefaultLimit = c.MaxLimit
	}
	if c.ExportMaxRows <= 0 {
		c.ExportMaxRows = 100000
	}
	if c.Project == "" {
		c.Project = model.DefaultProjectName
	}
	return c
}

// Server provides the HTTP API.
type Server struct {
	conf     Config
	store    Store
	sink     ingest.RecordSink
	searches *savedsearch.Store
	tools    *mcp.Server
	exec     *rql.Executor
	now      func() time.Time

	server    *http.Server
	mu        sync.Mutex
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. sink receives ingested records;
// searches may be nil to disable the saved search routes.
func NewServer(conf Config, store Store, sink ingest.RecordSink, searches *savedsearch.Store) *Server {
	conf = conf.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	tools := mcp.NewServer(store, store, conf.Version)
	tools.MaxLimit = conf.MaxLimit
	tools.OnQuery = func(q *rql.Query, elapsed time.Duration, err error) {
		metrics.ObserveQuery(queryKind(q), elapsed, err)
	}

	exec := rql.NewExecutor()
	exec.DefaultLimit = conf.DefaultLimit

	return &Server{
		conf:      conf,
		store:     store,
		sink:      sink,
		searches:  searches,
		tools:     tools,
		exec:      exec,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

func queryKind(q *rql.Query) string {
	if q.Commands().Aggregating() {
		return metrics.KindStats
	}
	return metrics.KindRecords
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/up", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/api/health", s.handleHealth)
	if s.conf.Metrics {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	ingestRoutes := r.Group("/", s.requireKey(true))
	ingestRoutes.POST("/api/v1/log", s.handleIngestOne)
	ingestRoutes.POST("/api/v1/logs", s.handleIngestBatch)
	ingestRoutes.POST("/v1/logs", s.handleIngestOTLP)

	api := r.Group("/api/v1", s.requireKey(false))
	api.GET("/logs", s.handleQuery)
	api.GET("/logs/export", s.handleExport)
	api.GET("/logs/:id", s.handleGetLog)

	api.GET("/sessions", s.handleListSessions)
	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions/:id", s.handleGetSession)
	api.GET("/sessions/:id/logs", s.handleSessionLogs)
	api.DELETE("/sessions/:id", s.handleDeleteSession)

	if s.searches != nil {
		api.GET("/saved_searches", s.handleListSearches)
		api.POST("/saved_searches", s.handleCreateSearch)
		api.GET("/saved_searches/:name", s.handleGetSearch)
		api.PUT("/saved_searches/:name", s.handleUpdateSearch)
		api.DELETE("/saved_searches/:name", s.handleDeleteSearch)
		api.GET("/saved_searches/:name/logs", s.handleRunSearch)
	}

	mcpRoutes := r.Group("/mcp", s.requireKey(false))
	mcpRoutes.GET("/tools", s.handleListTools)
	mcpRoutes.POST("/tools/:name", s.handleCallTool)
	mcpRoutes.POST("/rpc", s.handleRPC)

	return r
}

// Start begins serving HTTP requests in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
	}

	listener, err := net.Listen("tcp", s.conf.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.conf.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	logCount, err := s.store.TotalLogCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).String(),
		"log_count": logCount,
		"version":   s.conf.Version,
	})
}
