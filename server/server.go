// Package server exposes the audit orchestrator over an HTTP API: workflow
// submission and status, report listing and a health endpoint.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/auditmesh/agent"
	"github.com/hupe1980/auditmesh/logging"
	"github.com/hupe1980/auditmesh/storage"
)

// Options configures the server.
type Options struct {
	// Store serves the report endpoints; they return 503 without one.
	Store *storage.Store
	// Watchdog backs the health endpoint when set.
	Watchdog *agent.Watchdog
	Logger   logging.Logger
}

// WithStore wires the findings database.
func WithStore(s *storage.Store) func(o *Options) {
	return func(o *Options) { o.Store = s }
}

// WithWatchdog wires the health monitor.
func WithWatchdog(w *agent.Watchdog) func(o *Options) {
	return func(o *Options) { o.Watchdog = w }
}

// WithLogger wires a logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Server routes HTTP requests to the coordinator and the findings store.
type Server struct {
	coordinator *agent.Coordinator
	store       *storage.Store
	watchdog    *agent.Watchdog
	logger      logging.Logger
	engine      *gin.Engine
}

// workflowRequest is the POST /workflows body.
type workflowRequest struct {
	WorkflowType string         `json:"workflow_type" binding:"required"`
	Input        map[string]any `json:"input"`
}

// New constructs the server around a coordinator.
func New(coordinator *agent.Coordinator, optFns ...func(o *Options)) *Server {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		coordinator: coordinator,
		store:       opts.Store,
		watchdog:    opts.Watchdog,
		logger:      opts.Logger,
		engine:      engine,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/workflows", s.createWorkflow)
		v1.GET("/workflows", s.listWorkflows)
		v1.GET("/workflows/:id", s.getWorkflow)
		v1.GET("/reports", s.listReports)
		v1.GET("/reports/:id", s.getReport)
	}
}

// Handler exposes the router for custom servers and tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves the API on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.engine.Run(addr)
}

func (s *Server) createWorkflow(c *gin.Context) {
	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := map[string]any{"workflow_type": req.WorkflowType}
	for k, v := range req.Input {
		input[k] = v
	}

	result, err := s.coordinator.Process(c.Request.Context(), input)
	if err != nil {
		s.logger.Error("workflow request failed", "type", req.WorkflowType, "error", err.Error())
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) listWorkflows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workflows": s.coordinator.Workflows()})
}

func (s *Server) getWorkflow(c *gin.Context) {
	wf, ok := s.coordinator.WorkflowStatus(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (s *Server) listReports(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report storage not configured"})
		return
	}
	reports, err := s.store.Reports(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (s *Server) getReport(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report storage not configured"})
		return
	}
	meta, err := s.store.Report(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) health(c *gin.Context) {
	if s.watchdog == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	snapshot, err := s.watchdog.Process(c.Request.Context(), map[string]any{"action": "status"})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	snapshot["status"] = "ok"
	c.JSON(http.StatusOK, snapshot)
}
