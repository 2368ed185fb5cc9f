package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/nstogner/searchchat/pkg/agent"
	"github.com/nstogner/searchchat/pkg/model"
	"github.com/nstogner/searchchat/pkg/tools"
)

// BuilderConfig wires the agent for NewBuilder.
type BuilderConfig struct {
	Factory model.Factory
	Tools   *tools.Registry
	Model   string
	// FallbackCredential is used when a submission carries none.
	FallbackCredential string
	Options            []agent.Option
}

// NewBuilder returns a Builder that creates a provider for each submission.
// A credential from the submission wins over the fallback.
func NewBuilder(cfg BuilderConfig) Builder {
	return func(ctx context.Context, credential string) (Answerer, error) {
		credential = strings.TrimSpace(credential)
		if credential == "" {
			credential = cfg.FallbackCredential
		}
		if credential == "" {
			return nil, ErrMissingCredential
		}
		provider, err := cfg.Factory(ctx, credential)
		if err != nil {
			return nil, fmt.Errorf("creating model provider: %w", err)
		}
		return agent.New(provider, cfg.Model, cfg.Tools, cfg.Options...), nil
	}
}
