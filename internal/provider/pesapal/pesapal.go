package pesapal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"momo-service/config"
	"momo-service/internal/domain"
)

// Client is a stateless adapter to the Pesapal v3 API. It holds no state
// between calls; every initiation or reconciliation round-trip obtains its
// own bearer token.
type Client struct {
	cfg        config.PesapalConfig
	httpClient *http.Client
}

func NewClient(cfg config.PesapalConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// ============================================
// AUTH
// ============================================

type authRequest struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

type authResponse struct {
	Token   string `json:"token"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Authenticate exchanges the configured credentials for a short-lived
// bearer token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AuthTimeout)
	defer cancel()

	body, status, err := c.post(ctx, c.cfg.BaseURL+"/api/Auth/RequestToken", "", authRequest{
		ConsumerKey:    c.cfg.ConsumerKey,
		ConsumerSecret: c.cfg.ConsumerSecret,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnreachable, err)
	}

	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: malformed auth response", domain.ErrGatewayAuthFailed)
	}
	if status != http.StatusOK || resp.Token == "" {
		return "", fmt.Errorf("%w: status %d", domain.ErrGatewayAuthFailed, status)
	}

	return resp.Token, nil
}

// ============================================
// SUBMIT ORDER
// ============================================

type BillingAddress struct {
	EmailAddress string `json:"email_address"`
	PhoneNumber  string `json:"phone_number"`
	CountryCode  string `json:"country_code"`
	FirstName    string `json:"first_name"`
	MiddleName   string `json:"middle_name"`
	LastName     string `json:"last_name"`
	Line1        string `json:"line_1"`
	Line2        string `json:"line_2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	ZipCode      string `json:"zip_code"`
}

type OrderRequest struct {
	ID             string         `json:"id"`
	Currency       string         `json:"currency"`
	Amount         float64        `json:"amount"`
	Description    string         `json:"description"`
	CallbackURL    string         `json:"callback_url"`
	RedirectMode   int            `json:"redirect_mode"`
	NotificationID string         `json:"notification_id"`
	Branch         string         `json:"branch"`
	BillingAddress BillingAddress `json:"billing_address"`
}

type OrderResponse struct {
	OrderTrackingID   string `json:"order_tracking_id"`
	MerchantReference string `json:"merchant_reference"`
	RedirectURL       string `json:"redirect_url"`
	Status            string `json:"status"`
}

// SubmitOrder creates the remote payment order. The raw response body is
// returned for the ledger's diagnostic record regardless of outcome.
func (c *Client) SubmitOrder(ctx context.Context, token string, order *OrderRequest) (*OrderResponse, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	defer cancel()

	body, status, err := c.post(ctx, c.cfg.BaseURL+"/api/Transactions/SubmitOrderRequest", token, order)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnreachable, err)
	}

	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, body, fmt.Errorf("%w: malformed submit response", domain.ErrGatewaySubmitFailed)
	}
	if status != http.StatusOK || resp.OrderTrackingID == "" {
		return nil, body, fmt.Errorf("%w: status %d", domain.ErrGatewaySubmitFailed, status)
	}

	return &resp, body, nil
}

// ============================================
// TRANSACTION STATUS
// ============================================

// Status is the normalized view of whatever vocabulary the gateway uses.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusUnknown   Status = "unknown"
)

type StatusResult struct {
	Status Status
	Raw    json.RawMessage
}

type statusResponse struct {
	PaymentStatus string `json:"payment_status"`
}

// QueryStatus returns the authoritative payment status for an order. It
// fails soft: any transport or parse problem yields StatusUnknown rather
// than an error, because the reconciliation path must not crash on a
// transient gateway wobble.
func (c *Client) QueryStatus(ctx context.Context, token, orderTrackingID string) StatusResult {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	endpoint := c.cfg.BaseURL + "/api/Transactions/GetTransactionStatus?orderTrackingId=" + url.QueryEscape(orderTrackingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StatusResult{Status: StatusUnknown}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return StatusResult{Status: StatusUnknown}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return StatusResult{Status: StatusUnknown}
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return StatusResult{Status: StatusUnknown, Raw: body}
	}

	return StatusResult{Status: normalizeStatus(resp.PaymentStatus), Raw: body}
}

func normalizeStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "COMPLETED", "COMPLETED_SUCCESSFULLY", "SUCCESS":
		return StatusCompleted
	case "FAILED":
		return StatusFailed
	case "CANCELLED", "CANCELED":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// post sends a JSON body and returns the raw response body and status code.
func (c *Client) post(ctx context.Context, endpoint, token string, payload interface{}) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, err
	}

	return body, httpResp.StatusCode, nil
}
