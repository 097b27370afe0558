package server

import (
	"net/http"
	"strings"
	"time"

	storedomain "github.com/fieldkit/salesync/internal/store/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type bookingLineRequest struct {
	ItemID    int64           `json:"item_id"`
	OrderQty  decimal.Decimal `json:"order_qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createBookingRequest struct {
	CustomerEntityID int64                `json:"customer_entity_id"`
	OrderDate        string               `json:"order_date"`
	CreatedByID      string               `json:"created_by_id"`
	Lines            []bookingLineRequest `json:"lines"`
}

func (s *Server) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	orderDate, err := parseOptionalTime(req.OrderDate)
	if err != nil {
		AbortWithError(c, newValidationError("order_date", "invalid_order_date", "invalid order_date"))
		return
	}
	if orderDate == nil {
		orderDate = &time.Time{}
	}

	lines := make([]storedomain.BookingLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, storedomain.BookingLineInput{
			ItemID:    line.ItemID,
			OrderQty:  line.OrderQty,
			UnitPrice: line.UnitPrice,
		})
	}

	resp, err := s.storeSvc.CreateBooking(c.Request.Context(), storedomain.CreateBookingRequest{
		CustomerEntityID: req.CustomerEntityID,
		OrderDate:        *orderDate,
		CreatedByID:      strings.TrimSpace(req.CreatedByID),
		Lines:            lines,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBookings(c *gin.Context) {
	rng, err := dateRangeQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.storeSvc.ListBookings(c.Request.Context(), rng)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBooking(c *gin.Context) {
	bookingID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.storeSvc.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type adjustLineRequest struct {
	ItemID    int64           `json:"item_id"`
	QtyDelta  decimal.Decimal `json:"qty_delta"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (s *Server) AdjustBookingLine(c *gin.Context) {
	bookingID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req adjustLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.storeSvc.AdjustBookingLine(c.Request.Context(), bookingID, req.ItemID, req.QtyDelta, req.UnitPrice)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteBookingLine(c *gin.Context) {
	bookingID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	itemID, err := pathID(c, "itemID")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.storeSvc.DeleteBookingLine(c.Request.Context(), bookingID, itemID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func dateRangeQuery(c *gin.Context) (storedomain.DateRange, error) {
	from, err := parseOptionalTime(c.Query("from"))
	if err != nil {
		return storedomain.DateRange{}, newValidationError("from", "invalid_from", "invalid from")
	}
	to, err := parseOptionalTime(c.Query("to"))
	if err != nil {
		return storedomain.DateRange{}, newValidationError("to", "invalid_to", "invalid to")
	}
	return storedomain.DateRange{From: from, To: to}, nil
}

func parseOptionalTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
