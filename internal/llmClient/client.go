package llmclient

import (
	"context"
)

// Image is one captured spool-label photo, ready to be sent inline.
type Image struct {
	MIME string
	Data []byte
}

// GroundingSource is one web citation the provider attached to a response.
type GroundingSource struct {
	URI   string
	Title string
}

// StreamResult carries what is left after the stream closes: the provider's
// final metadata. The text itself has already been delivered chunk by chunk.
type StreamResult struct {
	Grounding []GroundingSource
}

// VisionClient defines the streaming vision call used by the analysis
// service. Cross-cutting concerns (logging, diagnostics) are applied via
// Middleware; retries belong to the caller, which owns the whole attempt.
type VisionClient interface {
	Name() string
	Close() error
	// GenerateVisionStream issues one streaming generate-content request with
	// the image inline and forwards each text chunk to onChunk in order.
	GenerateVisionStream(ctx context.Context, system string, img Image, onChunk func(chunk string)) (*StreamResult, error)
}

// Middleware wraps a VisionClient with additional behavior.
type Middleware func(VisionClient) VisionClient

// Chain applies middlewares left to right, the leftmost outermost.
func Chain(base VisionClient, mws ...Middleware) VisionClient {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}
