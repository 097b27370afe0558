package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fieldkit/salesync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable marks transport-level failures (connect, timeout,
	// 5xx); the caller may retry and no local state should change.
	ErrUnavailable = errors.New("server_unavailable")
	ErrRejected    = errors.New("server_rejected")
)

const (
	pathCheckConnection = "/api/order-booking/check-connection"
	pathConfirmLogin    = "/api/order-booking/ob_login"
	pathSync            = "/api/order-booking/sync"
	pathGraphQL         = "/api/graphql"
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// Client is the typed HTTP boundary to the order-booking server. Every
// loosely-shaped server response is parsed here; nothing downstream sees
// raw JSON.
type Client struct {
	http *http.Client
	log  *zap.Logger
}

func New(p Params) *Client {
	return &Client{
		http: &http.Client{Timeout: p.Config.RequestTimeout},
		log:  p.Log.Named("transport"),
	}
}

// Entity is the server-side account descriptor returned by a successful
// connection check.
type Entity struct {
	EntityID       string         `json:"entity_id"`
	Name           string         `json:"name"`
	CashierName    string         `json:"cashier_name"`
	CompanyName    string         `json:"company_name"`
	CompanyAddress string         `json:"company_address"`
	CompanyLogoURL string         `json:"company_logo_url"`
	Profile        map[string]any `json:"profile"`
}

type checkConnectionRequest struct {
	QRCodeData string `json:"qr_code_data"`
	DeviceID   string `json:"device_id,omitempty"`
	LastSeen   string `json:"last_seen,omitempty"`
}

type checkConnectionResponse struct {
	Valid   bool    `json:"valid"`
	Message string  `json:"message,omitempty"`
	Entity  *Entity `json:"entity,omitempty"`
}

// CheckConnection validates a scanned credential against the server. It
// doubles as the presence heartbeat when lastSeen is set.
func (c *Client) CheckConnection(ctx context.Context, serverOrigin, qrCodeData, deviceID string, lastSeen time.Time) (Entity, error) {
	body := checkConnectionRequest{
		QRCodeData: qrCodeData,
		DeviceID:   deviceID,
	}
	if !lastSeen.IsZero() {
		body.LastSeen = lastSeen.UTC().Format(time.RFC3339)
	}

	var parsed checkConnectionResponse
	if err := c.post(ctx, serverOrigin+pathCheckConnection, nil, body, &parsed); err != nil {
		return Entity{}, err
	}
	if !parsed.Valid || parsed.Entity == nil {
		if parsed.Message == "" {
			parsed.Message = "credential rejected"
		}
		return Entity{}, fmt.Errorf("%w: %s", ErrRejected, parsed.Message)
	}
	return *parsed.Entity, nil
}

type confirmLoginRequest struct {
	SessionID string `json:"session_id"`
	EntityID  string `json:"entity_id"`
}

type confirmLoginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ConfirmLogin registers the locally minted session id with the server.
// Only an explicit success makes the session usable.
func (c *Client) ConfirmLogin(ctx context.Context, serverOrigin, sessionID, entityID string) error {
	var parsed confirmLoginResponse
	err := c.post(ctx, serverOrigin+pathConfirmLogin, nil, confirmLoginRequest{
		SessionID: sessionID,
		EntityID:  entityID,
	}, &parsed)
	if err != nil {
		return err
	}
	if !parsed.Success {
		if parsed.Message == "" {
			parsed.Message = "session not confirmed"
		}
		return fmt.Errorf("%w: %s", ErrRejected, parsed.Message)
	}
	return nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// QueryReference runs a graphql query under the active session and
// decodes the data payload into out.
func (c *Client) QueryReference(ctx context.Context, serverOrigin, sessionID, query string, variables map[string]any, out any) error {
	headers := map[string]string{"x-session-id": sessionID}

	var parsed graphqlResponse
	err := c.post(ctx, serverOrigin+pathGraphQL, headers, graphqlRequest{
		Query:     query,
		Variables: variables,
	}, &parsed)
	if err != nil {
		return err
	}
	if len(parsed.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrRejected, parsed.Errors[0].Message)
	}
	return json.Unmarshal(parsed.Data, out)
}

func (c *Client) post(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, truncate(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
