package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/unclebandit/outreach-backend/internal/config"
)

// New builds the configured provider wrapped with rate limiting and retries.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "openai":
		p = NewOpenAI(cfg.ProviderAPIKey, cfg.ProviderModel, cfg.ProviderBaseURL)
	case "gemini":
		p, err = NewGemini(ctx, cfg.ProviderAPIKey, cfg.ProviderModel)
	case "playbook":
		p, err = NewPlaybook(cfg.PlaybookPath)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewLimited(p, cfg.ProviderRateLimit, cfg.ProviderRetries, log), nil
}
