package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/danphilibin/relay/internal/callresponse"
	"github.com/danphilibin/relay/internal/durable"
	"github.com/danphilibin/relay/internal/stream"
	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/util"
)

// Server implements the HTTP API of the relay runtime
type Server struct {
	orchestrator *callresponse.Orchestrator
	hub          *stream.Hub
	sockets      util.Set[*Client]
	mu           sync.Mutex
}

var (
	ErrInvalidJSON  = errors.New("invalid JSON")
	ErrStartRun     = errors.New("failed to start run")
	ErrRespond      = errors.New("failed to respond")
	ErrGetRun       = errors.New("failed to get run")
	ErrBuildCatalog = errors.New("failed to build catalog")
	ErrReadMessages = errors.New("failed to read messages")
)

// NewServer creates a new HTTP API server
func NewServer(o *callresponse.Orchestrator, hub *stream.Hub) *Server {
	return &Server{
		orchestrator: o,
		hub:          hub,
		sockets:      util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods", "GET, POST, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)

	// UI endpoints
	wf := router.Group("/workflows")
	{
		wf.GET("", s.listWorkflows)
		wf.POST("", s.startWorkflow)
		wf.GET("/:runID/messages", s.getMessages)
		wf.GET("/:runID/stream", s.streamRun)
		wf.GET("/:runID/ws", s.handleWebSocket)
		wf.POST("/:runID/event/:name", s.postEvent)
	}

	// Call-response endpoints
	run := router.Group("/api")
	{
		run.GET("/catalog", s.getCatalog)
		run.POST("/run", s.runWorkflow)
		run.GET("/run/:runID", s.getRun)
		run.POST("/run/:runID/respond", s.respond)
	}

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}

// failWith reports err under the operation sentinel op, choosing the
// status from the error chain
func failWith(c *gin.Context, op, err error) {
	abortWithError(c, errorStatus(err), fmt.Errorf("%w: %w", op, err))
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, callresponse.ErrWorkflowNotFound),
		errors.Is(err, callresponse.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, callresponse.ErrInteractionNotPending),
		errors.Is(err, durable.ErrInstanceNotRunning):
		return http.StatusConflict
	case errors.Is(err, callresponse.ErrInvalidInput),
		errors.Is(err, api.ErrInvalidResponse),
		errors.Is(err, api.ErrInvalidMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
