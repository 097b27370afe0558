package server

import (
	"net/http"
	"strings"

	referencedomain "github.com/fieldkit/salesync/internal/reference/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListItems(c *gin.Context) {
	resp, err := s.referenceSvc.ListItems(c.Request.Context(), referencedomain.ListItemsRequest{
		Search: strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCashBankAccounts(c *gin.Context) {
	resp, err := s.referenceSvc.ListCashBankAccounts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RefreshCatalog(c *gin.Context) {
	if err := s.referenceSvc.RefreshCatalog(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"refreshed": true}})
}
