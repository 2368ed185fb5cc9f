package gemini_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nstogner/searchchat/pkg/domain"
	"github.com/nstogner/searchchat/pkg/model"
	"github.com/nstogner/searchchat/pkg/model/gemini"
)

func setupProvider(t *testing.T) *gemini.Provider {
	t.Helper()
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping: GEMINI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	provider, err := gemini.New(ctx, apiKey)
	if err != nil {
		t.Fatalf("gemini.New: %v", err)
	}
	return provider
}

func TestIntegrationGeminiListModels(t *testing.T) {
	p := setupProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	models, err := p.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(models) == 0 {
		t.Fatal("No models found")
	}
	for _, m := range models {
		if m.Provider != "gemini" {
			t.Errorf("Model %s has provider %q, want %q", m.ID, m.Provider, "gemini")
		}
	}
}

// TestIntegrationGeminiStopSequence verifies generation halts before the
// ReAct observation marker.
func TestIntegrationGeminiStopSequence(t *testing.T) {
	p := setupProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stream, err := p.Stream(ctx, model.Request{
		Model: "gemini-2.0-flash",
		Messages: []model.Message{{
			Role:    domain.RoleUser,
			Content: "Repeat these two lines exactly:\nAction: Search\nObservation: done",
		}},
		Stop: []string{"\nObservation:"},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	text, err := model.Collect(stream, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if strings.Contains(text, "Observation:") {
		t.Errorf("stop sequence not honoured: %q", text)
	}
	t.Logf("Response: %s", text)
}

func TestIntegrationGeminiSystemInstruction(t *testing.T) {
	p := setupProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stream, err := p.Stream(ctx, model.Request{
		Model:        "gemini-2.0-flash",
		Instructions: "You are a helpful assistant named TestBot. Always introduce yourself by name.",
		Messages:     []model.Message{{Role: domain.RoleUser, Content: "What is your name?"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	text, err := model.Collect(stream, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !strings.Contains(strings.ToLower(text), "testbot") {
		t.Errorf("Expected 'TestBot' in response, got: %s", text)
	}
}
