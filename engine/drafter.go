package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// DefaultDraftSystemPrompt frames the drafting call.
const DefaultDraftSystemPrompt = `You draft email replies on behalf of the mailbox owner, imitating their personal writing voice. Use the retrieved conversation history and voice patterns in the prompt. Output only the reply body, no commentary.`

// AnthropicDrafter implements Drafter over the Claude Messages API.
type AnthropicDrafter struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
	system    string
}

// NewAnthropicDrafter wraps a Claude client. Zero values get defaults.
func NewAnthropicDrafter(client *anthropic.Client, model string, maxTokens int64) *AnthropicDrafter {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &AnthropicDrafter{
		client:    client,
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
		system:    DefaultDraftSystemPrompt,
	}
}

// Generate returns the drafted reply text.
func (d *AnthropicDrafter) Generate(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     d.model,
		MaxTokens: d.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		System: []anthropic.TextBlockParam{
			{Text: d.system},
		},
	}

	resp, err := d.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("model returned no text")
	}
	return text, nil
}
