package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"pawtrack/internal/types"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeClientConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// metadataTokenKey is the Checkout Session metadata key carrying our
// purchase token. The webhook reads it back to find the intent.
const metadataTokenKey = "purchase_token"

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey     string
	PublicBaseURL string // success/cancel redirect base
	Currency      string // lowercase ISO code, e.g. "clp"
	BaseURL       string // Override for testing; defaults to stripeAPIBase
	Logger        *slog.Logger
}

// StripeClient creates Checkout Sessions by calling the Stripe REST API
// directly through BaseClient, so Stripe traffic shares the platform's
// circuit breaker, retries and error mapping. It satisfies
// purchase.CheckoutProvider.
type StripeClient struct {
	base          *BaseClient
	secretKey     string
	baseURL       string
	publicBaseURL string
	currency      string
	logger        *slog.Logger
}

// NewStripeClient creates a new StripeClient.
func NewStripeClient(httpClient *http.Client, cfg StripeClientConfig) *StripeClient {
	base := NewBaseClient(
		httpClient,
		"stripe",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"Pawtrack/1.0",
	)
	return NewStripeClientWithBase(base, cfg)
}

// NewStripeClientWithBase creates a StripeClient with a pre-configured
// BaseClient. This is useful for testing when you want to control the
// BaseClient configuration.
func NewStripeClientWithBase(base *BaseClient, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "clp"
	}

	return &StripeClient{
		base:          base,
		secretKey:     cfg.SecretKey,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		currency:      currency,
		logger:        logger,
	}
}

// Name identifies intents opened through this provider.
func (s *StripeClient) Name() types.PurchaseProvider {
	return types.ProviderStripe
}

// CheckoutURL creates a one-time-payment Checkout Session for the intent
// and returns its hosted URL. The purchase token rides in the session
// metadata; the checkout.session.completed webhook reads it back and
// finalizes the intent.
func (s *StripeClient) CheckoutURL(ctx context.Context, intent *types.PurchaseIntent, user *types.User) (string, error) {
	params := url.Values{}
	params.Set("mode", "payment")
	params.Set("client_reference_id", intent.Token)
	params.Set("success_url", s.publicBaseURL+"/billing/success?t="+url.QueryEscape(intent.Token))
	params.Set("cancel_url", s.publicBaseURL+"/billing/cancel?t="+url.QueryEscape(intent.Token))
	params.Set("metadata["+metadataTokenKey+"]", intent.Token)
	params.Set("metadata[user_id]", intent.UserID)
	if user != nil && user.Email != "" {
		params.Set("customer_email", user.Email)
	}
	params.Set("line_items[0][quantity]", "1")
	params.Set("line_items[0][price_data][currency]", s.currency)
	params.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(intent.AmountCents, 10))
	params.Set("line_items[0][price_data][product_data][name]",
		fmt.Sprintf("Pawtrack %s plan", intent.TargetPlan))

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params)
	if err != nil {
		return "", s.wrapStripeError("CheckoutURL", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "CheckoutURL")
	}

	var session stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe checkout session response",
			err,
		)
	}

	s.logger.InfoContext(ctx, "stripe checkout session created",
		slog.String("session_id", session.ID),
		slog.String("purchase_id", intent.ID),
	)
	return session.URL, nil
}

// doPost performs an authenticated POST request to the Stripe API with a
// form-encoded body.
func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)

	return s.base.Do(req)
}

// stripeErrorResponse represents the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

// handleErrorResponse reads a Stripe error response and maps it to a
// types.AppError.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: Stripe rate limit exceeded", operation),
			nil,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: Stripe server error: %s", operation, stripeErr.Error.Message),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe error (%d): %s", operation, resp.StatusCode, stripeErr.Error.Message),
			nil,
			map[string]any{
				"stripe_code":  stripeErr.Error.Code,
				"decline_code": stripeErr.Error.DeclineCode,
			},
		)
	}
}

// wrapStripeError wraps a BaseClient transport error with context.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	// BaseClient already produced an AppError with the right upstream code.
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamStripe,
		fmt.Sprintf("%s: Stripe request failed: %v", operation, err),
		err,
	)
}

// stripeCheckoutSession is the subset of the Checkout Session response we
// consume.
type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutSessionEvent is the payload subset of checkout.session.completed
// the webhook handler needs: the metadata carrying our purchase token.
type CheckoutSessionEvent struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// PurchaseToken extracts the purchase token from the session metadata.
func (e *CheckoutSessionEvent) PurchaseToken() string {
	return e.Metadata[metadataTokenKey]
}

// StripeVerifier validates webhook payloads using stripe-go's HMAC-SHA256
// signature check with timestamp tolerance.
type StripeVerifier struct{}

// Verify validates a Stripe webhook payload against the signature header
// and signing secret.
func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return stripe.ValidatePayload(payload, header, secret)
}
