// Package commerce reads the catalog from the hosted commerce platform,
// opens checkout sessions on it and verifies its webhooks.
package commerce

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

var (
	_ port.CatalogReader          = (*Client)(nil)
	_ port.CheckoutSessionCreator = (*Client)(nil)
	_ port.WebhookParser          = (*Client)(nil)
)

const defaultTimeout = 10 * time.Second

type Config struct {
	SecretKey     string
	WebhookSecret string

	// StorefrontURL prefixes the checkout redirect pages.
	StorefrontURL string

	// APIURL overrides the platform endpoint.
	APIURL string

	Timeout           time.Duration
	MaxNetworkRetries int64
}

type Client struct {
	api           *client.API
	webhookSecret string
	storefrontURL string
}

func NewClient(cfg Config) Client {
	const op = "commerce.NewClient"

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	retries := max(cfg.MaxNetworkRetries, 0)

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		LeveledLogger:     leveledLogger{slog.With("op", op)},
		MaxNetworkRetries: stripe.Int64(retries),
		EnableTelemetry:   stripe.Bool(false),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}

	return Client{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		storefrontURL: strings.TrimRight(cfg.StorefrontURL, "/"),
	}
}

// mapErr translates a missing platform resource into domain.ErrNotFound.
func mapErr(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) &&
		(stripeErr.HTTPStatusCode == http.StatusNotFound ||
			stripeErr.Code == stripe.ErrorCodeResourceMissing) {
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	return err
}

type leveledLogger struct {
	log *slog.Logger
}

func (l leveledLogger) Debugf(format string, v ...any) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l leveledLogger) Infof(format string, v ...any) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l leveledLogger) Warnf(format string, v ...any) {
	l.log.Warn(fmt.Sprintf(format, v...))
}

func (l leveledLogger) Errorf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...))
}
