package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Login runs the QR handshake. The body is the scanned credential blob
// as-is.
func (s *Server) Login(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil || len(payload) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	entity, err := s.sessions.Login(c.Request.Context(), payload)
	if err != nil {
		s.metrics.RecordLogin("failure")
		AbortWithError(c, err)
		return
	}
	s.metrics.RecordLogin("success")

	// A fresh catalog is useful but not part of the handshake; a failed
	// pull leaves the previous cache in place.
	if err := s.referenceSvc.RefreshCatalog(c.Request.Context()); err != nil {
		s.log.Warn("catalog refresh after login failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"data": entity})
}

func (s *Server) Logout(c *gin.Context) {
	s.sessions.Logout(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"state": s.sessions.State()}})
}

func (s *Server) GetSession(c *gin.Context) {
	state := s.device.Get()
	resp := gin.H{
		"state":         s.sessions.State(),
		"device_id":     state.DeviceID,
		"logged_in":     state.LoggedIn,
		"entity_id":     state.EntityID,
		"server_origin": state.ServerOrigin,
	}

	if s.sessions.Confirmed() {
		if cfg, err := s.storeSvc.GetAppConfig(c.Request.Context()); err == nil {
			resp["cashier_name"] = cfg.CashierName
			resp["company_name"] = cfg.CompanyName
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// WipeData logs out and deletes the tenant's local database.
func (s *Server) WipeData(c *gin.Context) {
	if err := s.sessions.WipeData(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"wiped": true}})
}
