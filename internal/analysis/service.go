package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"spoolscan/internal/history"
	"spoolscan/internal/imagestore"
	llmclient "spoolscan/internal/llmClient"
)

// maxAttempts bounds one analysis: two retries on top of the first try.
const maxAttempts = 3

// Callbacks receive progressive output during one analysis. Both fire on the
// calling goroutine, strictly in stream order; either may be nil.
type Callbacks struct {
	OnLog func(LogEvent)
	OnBox func(BoxAnnotation)
}

// Service runs spool-label analyses. Each Analyze call owns its own stream
// state, so a Service may serve concurrent requests.
type Service struct {
	Model  string
	Logger *log.Logger

	// APIKey is read once per call; nil means the GEMINI_API_KEY env var.
	APIKey func() string
	// Dial builds the provider client for one attempt; nil means Gemini.
	Dial func(ctx context.Context, apiKey, model string) (llmclient.VisionClient, error)

	// Optional collaborators; any of them may be nil.
	Cache   *lru.Cache[string, Record]
	History *history.Store
	Images  imagestore.Archive

	// sleep is a test seam for the backoff delay.
	sleep func(time.Duration)
}

// Analyze photographs -> FilamentRecord. It retries transient failures with
// a linear backoff of 1s then 2s and returns an AggregateError once all
// attempts are spent. A missing credential fails immediately, before any
// network traffic.
func (s *Service) Analyze(ctx context.Context, img llmclient.Image, cb Callbacks) (Record, error) {
	key := strings.TrimSpace(s.apiKey())
	if key == "" {
		return Record{}, &ConfigurationError{Reason: "GEMINI_API_KEY is not set"}
	}

	digest := imageDigest(img.Data)
	if s.Cache != nil {
		if rec, ok := s.Cache.Get(digest); ok {
			s.logf("analysis cache hit for image %s", digest[:12])
			return rec, nil
		}
	}

	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		rec, err := s.attempt(ctx, key, img, cb)
		if err == nil {
			s.persist(ctx, digest, img, rec)
			return rec, nil
		}
		var pErr *llmclient.PermanentError
		if errors.As(err, &pErr) {
			return Record{}, err
		}
		last = err
		s.logf("analysis attempt %d/%d failed: %v", attempt, maxAttempts, err)
		if attempt == maxAttempts {
			break
		}
		if err := s.doSleep(ctx, time.Duration(attempt)*time.Second); err != nil {
			return Record{}, err
		}
	}
	return Record{}, &AggregateError{Attempts: maxAttempts, Last: last}
}

// attempt runs one full stream-and-finalize pass with fresh stream state.
func (s *Service) attempt(ctx context.Context, apiKey string, img llmclient.Image, cb Callbacks) (Record, error) {
	cli, err := s.dial(ctx, apiKey, s.Model)
	if err != nil {
		return Record{}, err
	}
	defer cli.Close()

	d := NewDemux(cb.OnLog, cb.OnBox)
	res, err := cli.GenerateVisionStream(ctx, systemInstruction, img, d.Write)
	if err != nil {
		return Record{}, err
	}
	full, streamed := d.Close()
	return Finalize(full, res.Grounding, streamed)
}

// persist records a successful analysis in the cache and the optional
// archives. All of it is best effort; a storage hiccup never fails the
// analysis the user already has.
func (s *Service) persist(ctx context.Context, digest string, img llmclient.Image, rec Record) {
	if s.Cache != nil {
		s.Cache.Add(digest, rec)
	}
	if s.History != nil {
		raw, _ := json.Marshal(rec)
		err := s.History.Save(ctx, history.Entry{
			ImageDigest: digest,
			Brand:       rec.Brand,
			Material:    rec.Material,
			ColorName:   rec.ColorName,
			ColorHex:    rec.ColorHex,
			Weight:      rec.Weight,
			Confidence:  rec.Confidence,
			Raw:         raw,
		})
		if err != nil {
			s.logf("history save failed for %s: %v", digest[:12], err)
		}
	}
	if s.Images != nil {
		if err := s.Images.Put(ctx, digest, img.MIME, img.Data); err != nil {
			s.logf("image archive failed for %s: %v", digest[:12], err)
		}
	}
}

func (s *Service) apiKey() string {
	if s.APIKey != nil {
		return s.APIKey()
	}
	return os.Getenv("GEMINI_API_KEY")
}

func (s *Service) dial(ctx context.Context, apiKey, model string) (llmclient.VisionClient, error) {
	if s.Dial != nil {
		return s.Dial(ctx, apiKey, model)
	}
	cli, err := llmclient.NewGeminiClient(ctx, apiKey, model)
	if err != nil {
		return nil, err
	}
	return llmclient.Chain(cli, llmclient.WithLogging(s.Logger)), nil
}

// doSleep waits out the backoff delay but wakes immediately when the caller
// gives up.
func (s *Service) doSleep(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		s.sleep(d)
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Service) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func imageDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
