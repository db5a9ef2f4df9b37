package llmclient

import (
	"context"
	"fmt"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client. It only
// focuses on the streaming API call itself; retries and logging are applied
// by the caller or via Middleware.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

// GenerateVisionStream sends the label photo with the given system
// instruction and streams the response text to onChunk in arrival order.
// Grounding citations, which the provider only finalizes at stream end, are
// collected and returned.
func (g *GeminiClient) GenerateVisionStream(ctx context.Context, system string, img Image, onChunk func(chunk string)) (*StreamResult, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{Text: "Analyze this filament spool label."},
			{InlineData: &genai.Blob{MIMEType: img.MIME, Data: img.Data}},
		},
	}}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       genai.Ptr[float32](0),
		Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	res := &StreamResult{}
	sawText := false
	for resp, err := range g.cli.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
		if err != nil {
			return nil, fmt.Errorf("gemini stream: %w", err)
		}
		for _, cand := range resp.Candidates {
			if cand.Content != nil {
				for _, part := range cand.Content.Parts {
					if part.Text != "" {
						sawText = true
						if onChunk != nil {
							onChunk(part.Text)
						}
					}
				}
			}
			if cand.GroundingMetadata != nil {
				for _, chunk := range cand.GroundingMetadata.GroundingChunks {
					if chunk.Web != nil && chunk.Web.URI != "" {
						res.Grounding = append(res.Grounding, GroundingSource{
							URI:   chunk.Web.URI,
							Title: chunk.Web.Title,
						})
					}
				}
			}
		}
	}
	if !sawText {
		return nil, ErrEmptyResponse
	}
	return res, nil
}
