package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/danphilibin/relay/pkg/api"
)

func (s *Server) listWorkflows(c *gin.Context) {
	wfs := s.orchestrator.ListWorkflows()
	c.JSON(http.StatusOK, api.WorkflowsListResponse{
		Workflows: wfs,
		Count:     len(wfs),
	})
}

func (s *Server) startWorkflow(c *gin.Context) {
	var req api.StartWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err),
		)
		return
	}

	if req.Name == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  "Workflow name is required",
			Status: http.StatusBadRequest,
		})
		return
	}

	id, slug, err := s.orchestrator.Start(
		c.Request.Context(), req.Name, req.Data,
	)
	if err != nil {
		failWith(c, ErrStartRun, err)
		return
	}

	c.JSON(http.StatusCreated, api.WorkflowStartedResponse{
		ID:   id,
		Name: slug,
	})
}

func (s *Server) getMessages(c *gin.Context) {
	runID, ok := s.runParam(c)
	if !ok {
		return
	}

	msgs, err := s.hub.Messages(c.Request.Context(), runID)
	if err != nil {
		failWith(c, ErrReadMessages, err)
		return
	}

	res := api.RunMessagesResponse{
		RunID:    runID,
		Messages: make([]api.Message, len(msgs)),
	}
	for i, m := range msgs {
		res.Messages[i] = *m
	}
	c.JSON(http.StatusOK, res)
}

// postEvent is the UI response path. The answer is appended to the run's
// stream before the run resumes, the same as the call-response path
func (s *Server) postEvent(c *gin.Context) {
	runID, ok := s.runParam(c)
	if !ok {
		return
	}

	var req api.EventRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest,
				fmt.Errorf("%w: %w", ErrInvalidJSON, err),
			)
			return
		}
	}

	payload, err := req.Payload()
	if err != nil {
		failWith(c, ErrRespond, err)
		return
	}

	event := api.MessageID(c.Param("name"))
	_, err = s.orchestrator.Submit(c.Request.Context(), runID, event, payload)
	if err != nil {
		failWith(c, ErrRespond, err)
		return
	}

	c.JSON(http.StatusAccepted, api.EventAcceptedResponse{
		RunID: runID,
		Event: event,
	})
}

// runParam reads the run id from the path and checks that the run exists
func (s *Server) runParam(c *gin.Context) (api.RunID, bool) {
	runID := api.RunID(c.Param("runID"))
	if _, err := s.orchestrator.RunWorkflow(
		c.Request.Context(), runID,
	); err != nil {
		failWith(c, ErrGetRun, err)
		return "", false
	}
	return runID, true
}
