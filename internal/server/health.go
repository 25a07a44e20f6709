package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	app "github.com/danphilibin/relay"
	"github.com/danphilibin/relay/pkg/api"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service: app.Name,
		Status:  api.HealthStatusOK,
		Version: app.Version,
	})
}
