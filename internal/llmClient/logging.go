package llmclient

import (
	"context"
	"log"
)

// WithLogging logs request sizes and errors. Provide a custom logger or nil
// to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next VisionClient) VisionClient {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next VisionClient
	log  *log.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) GenerateVisionStream(ctx context.Context, system string, img Image, onChunk func(chunk string)) (*StreamResult, error) {
	l.log.Printf("vision stream request (%s): %s image, %d bytes", l.next.Name(), img.MIME, len(img.Data))
	res, err := l.next.GenerateVisionStream(ctx, system, img, onChunk)
	if err != nil {
		l.log.Printf("vision stream error (%s): %v", l.next.Name(), err)
	}
	return res, err
}
