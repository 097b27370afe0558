package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunSync triggers a sync pass and reports what it accomplished.
func (s *Server) RunSync(c *gin.Context) {
	summary, err := s.engineSvc.Run(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
