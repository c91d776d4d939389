package purchase

import (
	"context"
	"net/url"

	"pawtrack/internal/types"
)

// MockProvider is the built-in checkout path for deployments without a
// payment processor. The checkout URL points at our own confirmation page,
// which calls FinalizePaid directly when the buyer confirms.
type MockProvider struct {
	// PublicBaseURL is the externally reachable base of this deployment.
	PublicBaseURL string
}

// NewMockProvider creates a MockProvider rooted at the given base URL.
func NewMockProvider(publicBaseURL string) *MockProvider {
	return &MockProvider{PublicBaseURL: publicBaseURL}
}

// Name identifies intents opened through this provider.
func (p *MockProvider) Name() types.PurchaseProvider {
	return types.ProviderMock
}

// CheckoutURL builds {base}/checkout?t={token}.
func (p *MockProvider) CheckoutURL(_ context.Context, intent *types.PurchaseIntent, _ *types.User) (string, error) {
	return p.PublicBaseURL + "/checkout?t=" + url.QueryEscape(intent.Token), nil
}
