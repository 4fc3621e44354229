package opal

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/logger"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &Client{
		baseURL:       server.URL,
		apiKey:        "sk_test_key",
		webhookSecret: "wh_test_secret",
		httpClient:    server.Client(),
		logger:        logger.GetLogger(),
	}
}

func TestClientSendsBearerAuth(t *testing.T) {
	var gotAuth, gotContentType string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"id":"sub_123","status":"active"}`))
	}))

	sub, err := client.GetSubscription(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, "sub_123", sub.ID)
	assert.Equal(t, "Bearer sk_test_key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
}

func TestClientErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		matches func(error) bool
	}{
		{
			name:    "404 maps to not found",
			status:  http.StatusNotFound,
			body:    `{"code":"resource_missing","message":"No such subscription"}`,
			matches: ierr.IsNotFound,
		},
		{
			name:    "409 maps to already exists",
			status:  http.StatusConflict,
			body:    `{"code":"duplicate","message":"Subscription already exists"}`,
			matches: ierr.IsAlreadyExists,
		},
		{
			name:    "422 maps to validation",
			status:  http.StatusUnprocessableEntity,
			body:    `{"code":"invalid_request","message":"Amount must be positive"}`,
			matches: ierr.IsValidation,
		},
		{
			name:    "400 maps to validation",
			status:  http.StatusBadRequest,
			body:    `{"code":"invalid_request","message":"Missing plan ref"}`,
			matches: ierr.IsValidation,
		},
		{
			name:    "500 maps to integration",
			status:  http.StatusInternalServerError,
			body:    `{"message":"Internal error"}`,
			matches: ierr.IsIntegration,
		},
		{
			name:    "unparseable body still maps by status",
			status:  http.StatusNotFound,
			body:    `not json`,
			matches: ierr.IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, err := client.GetSubscription(context.Background(), "sub_123")
			require.Error(t, err)
			assert.True(t, tt.matches(err))
		})
	}
}

func TestGetOpenInvoice(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/sub_123/invoices/open", r.URL.Path)
		w.Write([]byte(`{"id":"inv_123","subscription_id":"sub_123","status":"open","amount":"199"}`))
	}))

	invoice, err := client.GetOpenInvoice(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, "inv_123", invoice.ID)
	assert.Equal(t, InvoiceStatusOpen, invoice.Status)
}

func TestPayInvoicePath(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/invoices/inv_123/pay", r.URL.Path)
		w.Write([]byte(`{"invoice":{"id":"inv_123","status":"paid","amount":"199"}}`))
	}))

	result, err := client.PayInvoice(context.Background(), "inv_123")
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPaid, result.Invoice.Status)
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := &Client{webhookSecret: "wh_test_secret", logger: logger.GetLogger()}
	payload := []byte(`{"type":"invoice.paid","data":{"invoice_id":"inv_123"}}`)

	t.Run("valid signature passes", func(t *testing.T) {
		err := client.VerifyWebhookSignature(payload, signPayload("wh_test_secret", payload))
		assert.NoError(t, err)
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		err := client.VerifyWebhookSignature(payload, signPayload("other_secret", payload))
		require.Error(t, err)
		assert.True(t, ierr.IsPermissionDenied(err))
	})

	t.Run("tampered payload fails", func(t *testing.T) {
		sig := signPayload("wh_test_secret", payload)
		tampered := []byte(`{"type":"invoice.paid","data":{"invoice_id":"inv_999"}}`)
		err := client.VerifyWebhookSignature(tampered, sig)
		require.Error(t, err)
		assert.True(t, ierr.IsPermissionDenied(err))
	})

	t.Run("non-hex signature fails", func(t *testing.T) {
		err := client.VerifyWebhookSignature(payload, "not-a-hex-signature")
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("missing secret fails", func(t *testing.T) {
		bare := &Client{logger: logger.GetLogger()}
		err := bare.VerifyWebhookSignature(payload, signPayload("wh_test_secret", payload))
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})
}
