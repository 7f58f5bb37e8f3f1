package config

import "time"

type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Environment     string        `yaml:"environment"`
	Version         string        `yaml:"version"`
	Provider        string        `yaml:"provider"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	Stripe          StripeConfig  `yaml:"stripe"`
	Fake            FakeConfig    `yaml:"fake"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type FakeConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

// WebhookSecret returns the signing secret for the configured provider.
func (c *ServiceConfig) WebhookSecret() string {
	if c.Provider == "fake" {
		return c.Fake.WebhookSecret
	}
	return c.Stripe.WebhookSecret
}
