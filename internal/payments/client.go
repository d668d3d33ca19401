package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"workshop-booking/internal/config"

	"github.com/shopspring/decimal"
)

const maxResponseBytes = 1 << 20

// Client talks to the hosted gateway's REST charges API with a bearer secret key.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

type chargeRequest struct {
	Amount      json.Number   `json:"amount"`
	Currency    string        `json:"currency"`
	Description string        `json:"description,omitempty"`
	Customer    wireCustomer  `json:"customer"`
	Source      wireReference `json:"source"`
	Metadata    Metadata      `json:"metadata"`
	Redirect    wireURL       `json:"redirect"`
}

type wireCustomer struct {
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name,omitempty"`
	Email     string     `json:"email,omitempty"`
	Phone     *wirePhone `json:"phone,omitempty"`
}

type wirePhone struct {
	CountryCode string `json:"country_code"`
	Number      string `json:"number"`
}

type wireReference struct {
	ID string `json:"id"`
}

type wireURL struct {
	URL string `json:"url"`
}

type chargeResponse struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Metadata    Metadata        `json:"metadata"`
	Transaction wireURL         `json:"transaction"`
}

type errorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
	Message string `json:"message"`
}

func (c *Client) CreateCharge(ctx context.Context, spec ChargeSpec) (Charge, error) {
	body := chargeRequest{
		Amount:      json.Number(spec.Amount.String()),
		Currency:    spec.Currency,
		Description: spec.Description,
		Customer: wireCustomer{
			FirstName: spec.Customer.FirstName,
			LastName:  spec.Customer.LastName,
			Email:     spec.Customer.Email,
		},
		Source:   wireReference{ID: sourceAll},
		Metadata: spec.Metadata,
		Redirect: wireURL{URL: spec.RedirectURL},
	}
	if spec.Customer.PhoneNumber != "" {
		body.Customer.Phone = &wirePhone{CountryCode: spec.Customer.PhoneCountryCode, Number: spec.Customer.PhoneNumber}
	}

	raw, err := c.do(ctx, http.MethodPost, "/charges", body)
	if err != nil {
		return Charge{}, err
	}
	return decodeCharge(raw)
}

func (c *Client) GetCharge(ctx context.Context, chargeID string) (Charge, error) {
	if strings.TrimSpace(chargeID) == "" {
		return Charge{}, ErrInvalidArgument
	}
	raw, err := c.do(ctx, http.MethodGet, "/charges/"+url.PathEscape(chargeID), nil)
	if err != nil {
		return Charge{}, err
	}
	return decodeCharge(raw)
}

func (c *Client) do(ctx context.Context, method, path string, in any) (json.RawMessage, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("payments: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("payments: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrTransport, method, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, decodeGatewayError(resp.StatusCode, raw)
	}
	return raw, nil
}

func decodeCharge(raw json.RawMessage) (Charge, error) {
	var r chargeResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return Charge{}, fmt.Errorf("%w: decode charge: %w", ErrTransport, err)
	}
	if r.ID == "" {
		return Charge{}, fmt.Errorf("%w: charge response without id", ErrTransport)
	}
	return Charge{
		ID:             r.ID,
		Status:         strings.ToUpper(r.Status),
		Amount:         r.Amount,
		Currency:       r.Currency,
		Metadata:       r.Metadata,
		TransactionURL: r.Transaction.URL,
		Raw:            raw,
	}, nil
}

// decodeGatewayError turns a 4xx body into a *GatewayError. Anything that is not a
// recognizable error document is a transport fault: the outcome is unknown.
func decodeGatewayError(status int, raw []byte) error {
	var r errorResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("%w: %d with undecodable body", ErrTransport, status)
	}
	ge := &GatewayError{StatusCode: status, Body: json.RawMessage(raw)}
	switch {
	case len(r.Errors) > 0:
		ge.Code = r.Errors[0].Code
		ge.Description = r.Errors[0].Description
	case r.Message != "":
		ge.Description = r.Message
	default:
		return fmt.Errorf("%w: %d without error details", ErrTransport, status)
	}
	return ge
}
