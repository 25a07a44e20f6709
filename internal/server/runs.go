package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/danphilibin/relay/internal/agent"
	"github.com/danphilibin/relay/pkg/api"
)

func (s *Server) runWorkflow(c *gin.Context) {
	var req api.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err),
		)
		return
	}

	res, err := s.orchestrator.StartRun(
		c.Request.Context(), req.Workflow, req.Data,
	)
	if err != nil {
		failWith(c, ErrStartRun, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) respond(c *gin.Context) {
	var req api.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err),
		)
		return
	}

	if req.Event == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  "Event is required",
			Status: http.StatusBadRequest,
		})
		return
	}

	res, err := s.orchestrator.Respond(c.Request.Context(),
		api.RunID(c.Param("runID")), api.MessageID(req.Event), req.Data,
	)
	if err != nil {
		failWith(c, ErrRespond, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getRun(c *gin.Context) {
	res, err := s.orchestrator.GetRun(
		c.Request.Context(), api.RunID(c.Param("runID")),
	)
	if err != nil {
		failWith(c, ErrGetRun, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getCatalog(c *gin.Context) {
	catalog, err := agent.BuildCatalog(s.orchestrator.ListWorkflows())
	if err != nil {
		failWith(c, ErrBuildCatalog, err)
		return
	}
	c.JSON(http.StatusOK, catalog)
}
