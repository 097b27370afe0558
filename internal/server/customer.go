package server

import (
	"net/http"
	"strconv"
	"strings"

	storedomain "github.com/fieldkit/salesync/internal/store/domain"
	"github.com/gin-gonic/gin"
)

type createCustomerRequest struct {
	Name           string   `json:"name"`
	Phone          string   `json:"phone"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	LocationStatus string   `json:"location_status"`
}

func (s *Server) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.storeSvc.CreateCustomer(c.Request.Context(), storedomain.CreateCustomerRequest{
		Name:           strings.TrimSpace(req.Name),
		Phone:          strings.TrimSpace(req.Phone),
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		LocationStatus: strings.TrimSpace(req.LocationStatus),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCustomers(c *gin.Context) {
	resp, err := s.storeSvc.ListCustomers(c.Request.Context(), storedomain.ListCustomersRequest{
		Search: strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCustomer(c *gin.Context) {
	entityID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.storeSvc.GetCustomer(c.Request.Context(), entityID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateLocationRequest struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LocationStatus string  `json:"location_status"`
}

func (s *Server) UpdateCustomerLocation(c *gin.Context) {
	entityID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.storeSvc.UpdateCustomerLocation(c.Request.Context(), storedomain.UpdateCustomerLocationRequest{
		EntityID:       entityID,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		LocationStatus: strings.TrimSpace(req.LocationStatus),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type markVisitedRequest struct {
	Visited bool `json:"visited"`
}

func (s *Server) MarkCustomerVisited(c *gin.Context) {
	entityID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req markVisitedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.storeSvc.MarkCustomerVisited(c.Request.Context(), entityID, req.Visited)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, newValidationError(name, "invalid_id", "invalid identifier")
	}
	return id, nil
}
