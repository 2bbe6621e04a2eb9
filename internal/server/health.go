package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flipflow/flipflow"
	"github.com/flipflow/flipflow/pkg/api"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service: flipflow.Name,
		Version: flipflow.Version,
		Status:  "healthy",
	})
}
