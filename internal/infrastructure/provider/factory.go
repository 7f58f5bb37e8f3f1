package provider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wayfarerhq/payment-service/internal/config"
	"github.com/wayfarerhq/payment-service/internal/domain/provider"
	fakeProvider "github.com/wayfarerhq/payment-service/internal/infrastructure/provider/fake"
	stripeProvider "github.com/wayfarerhq/payment-service/internal/infrastructure/provider/stripe"
)

// Factory creates payment providers based on the provider type
type Factory struct {
	config *config.Config
	logger *zap.Logger
}

// NewFactory creates a new provider factory
func NewFactory(config *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		config: config,
		logger: logger,
	}
}

// GetProvider returns a payment provider based on the provider type
func (f *Factory) GetProvider(providerType provider.ProviderType) (provider.PaymentProvider, error) {
	switch providerType {
	case provider.ProviderTypeStripe:
		return f.createStripeProvider()
	case provider.ProviderTypeFake:
		return fakeProvider.NewFakeProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// GetProviderFromString returns a payment provider from a string type
func (f *Factory) GetProviderFromString(providerStr string) (provider.PaymentProvider, error) {
	// Default to Stripe if not specified
	if providerStr == "" {
		providerStr = string(provider.ProviderTypeStripe)
	}

	providerType := provider.ProviderType(providerStr)
	return f.GetProvider(providerType)
}

// createStripeProvider creates a new Stripe provider instance
func (f *Factory) createStripeProvider() (provider.PaymentProvider, error) {
	if f.config.Service.Stripe.SecretKey == "" {
		return nil, fmt.Errorf("Stripe secret key not configured")
	}

	return stripeProvider.NewStripeProvider(
		f.config.Service.Stripe.SecretKey,
		f.logger,
	), nil
}
