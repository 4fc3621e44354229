package opal

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/wellpath/wellpath/internal/config"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/logger"
)

// Client is a thin HTTP client for the Opal billing API. Opal uses bearer
// auth and returns its error envelope on every non-2xx response.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
	logger        *logger.Logger
}

// NewClient creates an Opal API client with retrying transport.
func NewClient(cfg *config.Configuration, log *logger.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Billing.MaxRetries
	retryClient.HTTPClient.Timeout = cfg.Billing.RequestTimeout
	retryClient.Logger = log.GetRetryableHTTPLogger()

	return &Client{
		baseURL:       cfg.Billing.OpalAPIURL,
		apiKey:        cfg.Billing.OpalAPIKey,
		webhookSecret: cfg.Billing.OpalWebhookSecret,
		httpClient:    retryClient.StandardClient(),
		logger:        log,
	}
}

// do executes one API call, decoding the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Invalid Opal request data").
				Mark(ierr.ErrInternal)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrInternal)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Errorw("opal request failed", "method", method, "path", path, "error", err)
		return ierr.WithError(err).
			WithHint("Unable to connect to Opal API").
			Mark(ierr.ErrHTTPClient)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read Opal response").
			Mark(ierr.ErrHTTPClient)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp.StatusCode, respBody, method, path)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to parse Opal response").
				Mark(ierr.ErrIntegration)
		}
	}
	return nil
}

// apiError maps Opal's error envelope onto the local error taxonomy.
func (c *Client) apiError(status int, body []byte, method, path string) error {
	var errResp ErrorResponse
	message := fmt.Sprintf("Opal API returned HTTP %d", status)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		message = errResp.Message
	}

	c.logger.Errorw("opal API error",
		"status", status,
		"method", method,
		"path", path,
		"code", errResp.Code,
		"message", message)

	builder := ierr.NewError(message).
		WithReportableDetails(map[string]interface{}{
			"status": status,
			"code":   errResp.Code,
			"path":   path,
		})

	switch {
	case status == http.StatusNotFound:
		return builder.Mark(ierr.ErrNotFound)
	case status == http.StatusConflict:
		return builder.Mark(ierr.ErrAlreadyExists)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return builder.Mark(ierr.ErrValidation)
	default:
		return builder.Mark(ierr.ErrIntegration)
	}
}

// UpsertCustomer creates or updates an Opal customer keyed by reference.
func (c *Client) UpsertCustomer(ctx context.Context, req *CreateCustomerRequest) (*OpalCustomer, error) {
	var customer OpalCustomer
	if err := c.do(ctx, http.MethodPost, "/customers", req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomerByReference resolves a customer by our reference id.
func (c *Client) GetCustomerByReference(ctx context.Context, reference string) (*OpalCustomer, error) {
	var customer OpalCustomer
	path := "/customers/by-reference/" + url.PathEscape(reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateSubscription creates a subscription in Opal.
func (c *Client) CreateSubscription(ctx context.Context, req *CreateSubscriptionRequest) (*OpalSubscription, error) {
	var sub OpalSubscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions", req, &sub); err != nil {
		return nil, err
	}
	c.logger.Infow("created subscription in Opal",
		"opal_subscription_id", sub.ID,
		"customer_id", sub.CustomerID,
		"amount", sub.Amount)
	return &sub, nil
}

// GetSubscription fetches a subscription from Opal.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*OpalSubscription, error) {
	var sub OpalSubscription
	path := "/subscriptions/" + url.PathEscape(subscriptionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateSubscription changes a subscription's price in Opal.
func (c *Client) UpdateSubscription(ctx context.Context, subscriptionID string, req *UpdateSubscriptionRequest) (*OpalSubscription, error) {
	var sub OpalSubscription
	path := "/subscriptions/" + url.PathEscape(subscriptionID)
	if err := c.do(ctx, http.MethodPatch, path, req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelSubscription cancels a subscription, optionally at a future date.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, req *CancelSubscriptionRequest) error {
	path := "/subscriptions/" + url.PathEscape(subscriptionID) + "/cancel"
	return c.do(ctx, http.MethodPost, path, req, nil)
}

// DeleteSubscription removes a subscription entirely. Used only to unwind
// a subscription whose first charge failed.
func (c *Client) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	path := "/subscriptions/" + url.PathEscape(subscriptionID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetOpenInvoice returns the subscription's open invoice, or a not-found
// error when everything is settled.
func (c *Client) GetOpenInvoice(ctx context.Context, subscriptionID string) (*OpalInvoice, error) {
	var invoice OpalInvoice
	path := "/subscriptions/" + url.PathEscape(subscriptionID) + "/invoices/open"
	if err := c.do(ctx, http.MethodGet, path, nil, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// PayInvoice charges an open invoice against the customer's payment method
// on file.
func (c *Client) PayInvoice(ctx context.Context, invoiceID string) (*PayInvoiceResponse, error) {
	var result PayInvoiceResponse
	path := "/invoices/" + url.PathEscape(invoiceID) + "/pay"
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPrices fetches Opal's price catalog.
func (c *Client) ListPrices(ctx context.Context) (*ListPricesResponse, error) {
	var result ListPricesResponse
	if err := c.do(ctx, http.MethodGet, "/prices", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreatePaymentLink creates a patient-facing link to settle a
// subscription's open balance.
func (c *Client) CreatePaymentLink(ctx context.Context, req *CreatePaymentLinkRequest) (*PaymentLinkResponse, error) {
	var result PaymentLinkResponse
	if err := c.do(ctx, http.MethodPost, "/payment_links", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature Opal sends on
// webhook deliveries.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) error {
	if c.webhookSecret == "" {
		return ierr.NewError("webhook secret not configured").
			WithHint("Configure the Opal webhook secret").
			Mark(ierr.ErrValidation)
	}

	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return ierr.NewError("invalid webhook signature format").
			WithHint("Signature must be a valid hex string").
			Mark(ierr.ErrValidation)
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	if !hmac.Equal(expected, decoded) {
		return ierr.NewError("webhook signature verification failed").
			Mark(ierr.ErrPermissionDenied)
	}
	return nil
}
