// Package providers selects a model.Provider implementation from config.
package providers

import (
	"context"
	"fmt"

	"github.com/nstogner/searchchat/pkg/config"
	"github.com/nstogner/searchchat/pkg/model"
	"github.com/nstogner/searchchat/pkg/model/gemini"
	"github.com/nstogner/searchchat/pkg/model/groq"
)

// Factory returns a model.Factory for the configured provider.
func Factory(cfg *config.Config) (model.Factory, error) {
	switch cfg.Provider {
	case config.ProviderGroq:
		baseURL := cfg.GroqBaseURL
		return func(ctx context.Context, credential string) (model.Provider, error) {
			return groq.New(credential, baseURL), nil
		}, nil
	case config.ProviderGemini:
		return func(ctx context.Context, credential string) (model.Provider, error) {
			return gemini.New(ctx, credential)
		}, nil
	}
	return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
}
