package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/plutov/paypal/v4"

	"github.com/viniciusprado/bazarlivre-backend/pkg/config"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
)

var errCredentialsRequired = errors.New("paypal client id and secret are required")

// Client wraps the PayPal REST client plus env metadata.
type Client struct {
	api         *paypal.Client
	environment string
}

// NewClient initializes the PayPal client and fetches an initial access token
// so misconfigured credentials fail at boot, not at first checkout.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || secret == "" {
		return nil, errCredentialsRequired
	}

	base := paypal.APIBaseSandBox
	env := "sandbox"
	if cfg.Live() {
		base = paypal.APIBaseLive
		env = "live"
	}

	api, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, fmt.Errorf("build paypal client: %w", err)
	}
	if _, err := api.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("paypal client initialized (%s)", env))
	}

	return &Client{api: api, environment: env}, nil
}

// VerifyWebhook checks the transmission signature of a webhook request
// against the configured webhook id.
func (c *Client) VerifyWebhook(ctx context.Context, req *http.Request, webhookID string) (bool, error) {
	resp, err := c.api.VerifyWebhookSignature(ctx, req, webhookID)
	if err != nil {
		return false, fmt.Errorf("verify paypal webhook: %w", err)
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

// API returns the underlying PayPal client.
func (c *Client) API() *paypal.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the PayPal environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}
