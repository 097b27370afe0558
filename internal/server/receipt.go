package server

import (
	"net/http"
	"strconv"
	"strings"

	storedomain "github.com/fieldkit/salesync/internal/store/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createReceiptRequest struct {
	CustomerEntityID int64           `json:"customer_entity_id"`
	Amount           decimal.Decimal `json:"amount"`
	CashBankName     string          `json:"cash_bank_name"`
	Note             *string         `json:"note"`
	Attachment       *string         `json:"attachment"`
}

func (s *Server) CreateReceipt(c *gin.Context) {
	var req createReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.storeSvc.CreateReceipt(c.Request.Context(), storedomain.CreateReceiptRequest{
		CustomerEntityID: req.CustomerEntityID,
		Amount:           req.Amount,
		CashBankName:     strings.TrimSpace(req.CashBankName),
		Note:             req.Note,
		Attachment:       req.Attachment,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReceipts(c *gin.Context) {
	rng, err := dateRangeQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.storeSvc.ListReceipts(c.Request.Context(), rng)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecentActivity(c *gin.Context) {
	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		limit = parsed
	}

	resp, err := s.storeSvc.RecentActivity(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
