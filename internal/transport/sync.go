package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	storedomain "github.com/fieldkit/salesync/internal/store/domain"
)

// BatchRequest is one sync upload: every currently-unsynced row across
// entity types, flattened the way the server expects (booking lines go
// in their own array).
type BatchRequest struct {
	SessionID         string                         `json:"session_id"`
	AppEntityID       string                         `json:"app_entity_id"`
	Customers         []storedomain.Customer         `json:"customers"`
	OrderBookings     []storedomain.OrderBooking     `json:"order_booking"`
	OrderBookingLines []storedomain.OrderBookingLine `json:"order_booking_line"`
	Receipts          []storedomain.Receipt          `json:"receipts"`
}

// OutcomeKind tags the parsed sync response.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeSessionInvalid
	OutcomeRejected
	OutcomeTransportError
)

// Outcome is the sync response reduced to one of four shapes at the
// boundary, so callers never branch on raw JSON.
type Outcome struct {
	Kind            OutcomeKind
	Message         string
	ServerCustomers []storedomain.Customer
}

type syncResponse struct {
	Success         bool                   `json:"success"`
	Error           string                 `json:"error,omitempty"`
	SessionValid    *bool                  `json:"sessionValid,omitempty"`
	ServerCustomers []storedomain.Customer `json:"server_customers,omitempty"`
}

// SubmitBatch uploads one batch under the given session. Transport
// failures come back as OutcomeTransportError; the server never saw a
// committed batch in that case, so the caller must leave all flags alone.
func (c *Client) SubmitBatch(ctx context.Context, serverOrigin string, batch BatchRequest) Outcome {
	payload, err := json.Marshal(batch)
	if err != nil {
		return Outcome{Kind: OutcomeRejected, Message: "encode batch: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverOrigin+pathSync, bytes.NewReader(payload))
	if err != nil {
		return Outcome{Kind: OutcomeRejected, Message: "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Session-Id", batch.SessionID)
	req.Header.Set("app_entity_id", batch.AppEntityID)

	resp, err := c.http.Do(req)
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, Message: err.Error()}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return Outcome{Kind: OutcomeTransportError, Message: resp.Status}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Outcome{Kind: OutcomeSessionInvalid, Message: resp.Status}
	}

	var parsed syncResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Outcome{Kind: OutcomeTransportError, Message: "decode response: " + err.Error()}
	}

	return reduceSyncResponse(parsed)
}

func reduceSyncResponse(parsed syncResponse) Outcome {
	if parsed.SessionValid != nil && !*parsed.SessionValid {
		return Outcome{Kind: OutcomeSessionInvalid, Message: parsed.Error}
	}
	if !parsed.Success {
		if isSessionFaultMessage(parsed.Error) {
			return Outcome{Kind: OutcomeSessionInvalid, Message: parsed.Error}
		}
		return Outcome{Kind: OutcomeRejected, Message: parsed.Error}
	}
	return Outcome{
		Kind:            OutcomeSuccess,
		ServerCustomers: parsed.ServerCustomers,
	}
}

// isSessionFaultMessage covers servers that report a stale session only
// through the error text instead of the sessionValid flag.
func isSessionFaultMessage(message string) bool {
	lowered := strings.ToLower(message)
	return strings.Contains(lowered, "session mismatch") ||
		strings.Contains(lowered, "session expired") ||
		strings.Contains(lowered, "invalid session")
}

// IsRetryable reports whether the error is a transport failure safe to
// retry without any local cleanup.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
