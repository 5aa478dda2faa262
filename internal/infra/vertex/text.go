package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"

	"plan-gate-server/internal/domain"
)

// TextGenerator implements domain.TextGenerator with Gemini on Vertex AI.
type TextGenerator struct {
	client *genai.Client
	model  string
	logger domain.Logger
}

// NewTextGenerator creates a Vertex AI client for projectID/location.
func NewTextGenerator(ctx context.Context, projectID, location, model string, logger domain.Logger) (*TextGenerator, error) {
	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex ai client: %w", err)
	}
	return &TextGenerator{client: client, model: model, logger: logger}, nil
}

// Close releases the underlying gRPC connection.
func (g *TextGenerator) Close() error {
	return g.client.Close()
}

func (g *TextGenerator) newModel() *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.8)
	return model
}

func (g *TextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.newModel().GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini call failed: %v", domain.ErrInferenceUnavailable, err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty response from model", domain.ErrInferenceUnavailable)
	}
	return text, nil
}

// Stream stops reading from the model as soon as ctx is cancelled, which
// closes the upstream stream.
func (g *TextGenerator) Stream(ctx context.Context, prompt string, emit func(chunk string) error) error {
	iter := g.newModel().GenerateContentStream(ctx, genai.Text(prompt))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: gemini stream failed: %v", domain.ErrInferenceUnavailable, err)
		}
		if chunk := responseText(resp); chunk != "" {
			if err := emit(chunk); err != nil {
				return err
			}
		}
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}
