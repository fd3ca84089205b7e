package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"medcase-engine/internal/domain"
)

const systemPrompt = `You are a clinical tutor helping a medical learner reason
through a multiple-choice case. Give one short hint that narrows the
differential without naming or numbering the correct answer option. Two
sentences maximum.`

// AnthropicGateway implements app.HintGateway using the Anthropic Messages API.
type AnthropicGateway struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

func NewAnthropicGateway(cfg AnthropicConfig) (*AnthropicGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-haiku-4-5-20251001"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &AnthropicGateway{client: &client, model: model, maxTokens: maxTokens}, nil
}

// GetHint asks for one tutoring hint for the case. Errors surface to the
// caller; an empty completion is an error, never a silent success.
func (g *AnthropicGateway) GetHint(ctx context.Context, c domain.Case) (string, error) {
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(g.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(c))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic hint request: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", fmt.Errorf("no text content in hint response")
}

func buildPrompt(c domain.Case) string {
	var b strings.Builder
	b.WriteString("Case explanation (for your eyes only, do not quote):\n")
	b.WriteString(c.Explanation)
	b.WriteString("\n\nAnswer options:\n")
	for i, opt := range c.Options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt)
	}
	b.WriteString("\nGive the hint now.")
	return b.String()
}
