package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pawtrack/internal/types"
)

// SMSGatewayClient delivers text messages through the deployment's SMS
// gateway. The gateway exposes a single POST endpoint accepting a JSON body
// with the destination phone and the message text.
type SMSGatewayClient struct {
	base       *BaseClient
	gatewayURL string
	logger     *slog.Logger
}

// SMSGatewayConfig holds the configuration for creating an SMSGatewayClient.
type SMSGatewayConfig struct {
	GatewayURL string
	UserAgent  string
	Logger     *slog.Logger
}

// NewSMSGatewayClient creates a new SMSGatewayClient.
func NewSMSGatewayClient(httpClient *http.Client, cfg SMSGatewayConfig) *SMSGatewayClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Pawtrack/1.0"
	}

	base := NewBaseClient(
		httpClient,
		"sms-gateway",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		userAgent,
	)

	return &SMSGatewayClient{
		base:       base,
		gatewayURL: strings.TrimSuffix(cfg.GatewayURL, "/"),
		logger:     logger,
	}
}

// NewSMSGatewayClientWithBase creates an SMSGatewayClient with a
// pre-configured BaseClient, for tests that control retry timing.
func NewSMSGatewayClientWithBase(base *BaseClient, cfg SMSGatewayConfig) *SMSGatewayClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SMSGatewayClient{
		base:       base,
		gatewayURL: strings.TrimSuffix(cfg.GatewayURL, "/"),
		logger:     logger,
	}
}

// smsPayload is the gateway's request body.
type smsPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// SendSMS posts the message to the gateway. Transport failures and non-2xx
// responses map to ErrCodeUpstreamSMS; retries and circuit breaking are
// handled by the BaseClient underneath.
func (c *SMSGatewayClient) SendSMS(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(smsPayload{Phone: phone, Message: message})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode sms payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build sms request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		if appErr, ok := err.(*types.AppError); ok {
			return appErr
		}
		return types.NewAppError(types.ErrCodeUpstreamSMS, "sms gateway request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.NewAppError(
			types.ErrCodeUpstreamSMS,
			fmt.Sprintf("sms gateway returned %d", resp.StatusCode),
			nil,
		)
	}

	c.logger.DebugContext(ctx, "sms delivered", slog.String("phone", redactPhone(phone)))
	return nil
}

// redactPhone keeps only the last 3 digits for logging.
func redactPhone(phone string) string {
	if len(phone) <= 3 {
		return "***"
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
