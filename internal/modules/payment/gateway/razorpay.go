package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// GatewayError carries the gateway's own status and description so handlers
// can relay them. StatusCode is zero when the gateway was never reached.
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("payment gateway unreachable: %s", e.Description)
	}
	return fmt.Sprintf("payment gateway error %d (%s): %s", e.StatusCode, e.Code, e.Description)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Notes is the free-form metadata Razorpay attaches to orders and links.
// Razorpay encodes empty notes as [] rather than {}.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || strings.HasPrefix(trimmed, "[") {
		*n = Notes{}
		return nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Notes, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	*n = out
	return nil
}

type OrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	Notes    Notes  `json:"notes,omitempty"`
}

type Order struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	Notes      Notes  `json:"notes"`
	CreatedAt  int64  `json:"created_at"`
}

type PaymentLinkRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
	ExpireBy    int64  `json:"expire_by,omitempty"`
	Notes       Notes  `json:"notes,omitempty"`
}

type LinkPayment struct {
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

type PaymentLink struct {
	ID          string        `json:"id"`
	Amount      int64         `json:"amount"`
	AmountPaid  int64         `json:"amount_paid"`
	Currency    string        `json:"currency"`
	Status      string        `json:"status"`
	ShortURL    string        `json:"short_url"`
	ReferenceID string        `json:"reference_id"`
	Description string        `json:"description"`
	ExpireBy    int64         `json:"expire_by"`
	Notes       Notes         `json:"notes"`
	Payments    []LinkPayment `json:"payments"`
}

// CapturedPaymentID returns the first captured payment on the link.
func (l *PaymentLink) CapturedPaymentID() string {
	for _, p := range l.Payments {
		if p.Status == "captured" {
			return p.PaymentID
		}
	}
	return ""
}

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client talks to the Razorpay REST API with basic auth.
type Client struct {
	http  *resty.Client
	keyID string
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetBasicAuth(cfg.KeyID, cfg.KeySecret).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		keyID: cfg.KeyID,
	}
}

// KeyID is the public key the checkout widget needs.
func (c *Client) KeyID() string {
	return c.keyID
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error) {
	var link PaymentLink
	if err := c.do(ctx, http.MethodPost, "/payment_links", req, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *Client) FetchPaymentLink(ctx context.Context, linkID string) (*PaymentLink, error) {
	var link PaymentLink
	if err := c.do(ctx, http.MethodGet, "/payment_links/"+linkID, nil, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var apiErr errorEnvelope
	req := c.http.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return &GatewayError{Description: err.Error(), Err: err}
	}
	if resp.IsError() {
		gerr := &GatewayError{
			StatusCode:  resp.StatusCode(),
			Code:        apiErr.Error.Code,
			Description: apiErr.Error.Description,
		}
		if gerr.Description == "" {
			gerr.Description = http.StatusText(resp.StatusCode())
		}
		return gerr
	}
	return nil
}
