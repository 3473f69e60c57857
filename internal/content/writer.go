package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty response from Anthropic API")

// Writer turns meeting notes into action plans with the Anthropic API.
type Writer struct {
	apiKey    string
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewWriter creates a writer. Extra request options are passed to the SDK
// client (base URL, retries).
func NewWriter(apiKey string, model string, opts ...option.RequestOption) *Writer {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &Writer{
		apiKey:    apiKey,
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: 4096,
	}
}

// DraftActionPlan creates the editable draft from notes or a transcript.
func (w *Writer) DraftActionPlan(ctx context.Context, notes string) (string, error) {
	text, err := w.complete(ctx, DraftSystemPrompt, DraftPrompt+"\n\n"+notesHeading+"\n"+notes, 0.2)
	if err != nil {
		return "", fmt.Errorf("failed to draft action plan: %w", err)
	}

	return text, nil
}

// Polish formats a reviewed plan without changing its meaning.
func (w *Writer) Polish(ctx context.Context, plan string) (string, error) {
	text, err := w.complete(ctx, PolishSystemPrompt, PolishPrompt+"\n\n"+planHeading+"\n"+plan, 0.1)
	if err != nil {
		return "", fmt.Errorf("failed to polish action plan: %w", err)
	}

	return text, nil
}

func (w *Writer) complete(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	if w.apiKey == "" {
		return "", errors.New("API key required: set ANTHROPIC_API_KEY or use config set-key")
	}

	resp, err := w.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       w.model,
		MaxTokens:   w.maxTokens,
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}

	if strings.TrimSpace(out.String()) == "" {
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(out.String()), nil
}
