package analysis

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	llmclient "spoolscan/internal/llmClient"
)

// fakeVision replays one scripted attempt: either an error or a fixed chunk
// sequence with optional grounding.
type fakeVision struct {
	chunks    []string
	grounding []llmclient.GroundingSource
	err       error
	closed    bool
}

func (f *fakeVision) Name() string { return "fake" }

func (f *fakeVision) Close() error {
	f.closed = true
	return nil
}

func (f *fakeVision) GenerateVisionStream(ctx context.Context, system string, img llmclient.Image, onChunk func(string)) (*llmclient.StreamResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.chunks {
		onChunk(c)
	}
	return &llmclient.StreamResult{Grounding: f.grounding}, nil
}

// scriptedService wires a Service to a sequence of fakeVision attempts and
// captures sleep durations instead of sleeping.
func scriptedService(t *testing.T, attempts []*fakeVision) (*Service, *int, *[]time.Duration) {
	t.Helper()
	dials := new(int)
	delays := &[]time.Duration{}
	svc := &Service{
		Model:  "test-model",
		APIKey: func() string { return "test-key" },
		Dial: func(ctx context.Context, apiKey, model string) (llmclient.VisionClient, error) {
			if *dials >= len(attempts) {
				t.Fatalf("unexpected dial #%d", *dials+1)
			}
			cli := attempts[*dials]
			*dials++
			return cli, nil
		},
		sleep: func(d time.Duration) { *delays = append(*delays, d) },
	}
	return svc, dials, delays
}

func testImage() llmclient.Image {
	return llmclient.Image{MIME: "image/jpeg", Data: []byte("not really a jpeg")}
}

func TestAnalyzeSucceedsOnThirdAttempt(t *testing.T) {
	svc, dials, delays := scriptedService(t, []*fakeVision{
		{err: errors.New("transient upstream hiccup")},
		{err: errors.New("another transient hiccup")},
		{chunks: []string{fullJSON}},
	})

	rec, err := svc.Analyze(context.Background(), testImage(), Callbacks{})
	if err != nil {
		t.Fatalf("expected recovery on third attempt, got %v", err)
	}
	if rec.Brand != "OVERTURE" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if *dials != 3 {
		t.Fatalf("expected 3 attempts, got %d", *dials)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*delays) != len(want) || (*delays)[0] != want[0] || (*delays)[1] != want[1] {
		t.Fatalf("expected linear backoff %v, got %v", want, *delays)
	}
}

func TestAnalyzeExhaustsAttempts(t *testing.T) {
	boom := errors.New("upstream down")
	svc, dials, delays := scriptedService(t, []*fakeVision{
		{err: boom}, {err: boom}, {err: boom},
	})

	_, err := svc.Analyze(context.Background(), testImage(), Callbacks{})
	var agg *AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("expected AggregateError, got %v", err)
	}
	if agg.Attempts != 3 {
		t.Fatalf("expected 3 attempts recorded, got %d", agg.Attempts)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("aggregate should unwrap to the last failure")
	}
	if *dials != 3 {
		t.Fatalf("expected exactly 3 dials, got %d", *dials)
	}
	// No sleep after the final attempt.
	if len(*delays) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %v", *delays)
	}
}

func TestAnalyzeMissingKeyFailsFast(t *testing.T) {
	dialed := false
	svc := &Service{
		APIKey: func() string { return "   " },
		Dial: func(ctx context.Context, apiKey, model string) (llmclient.VisionClient, error) {
			dialed = true
			return nil, errors.New("must not be called")
		},
	}

	_, err := svc.Analyze(context.Background(), testImage(), Callbacks{})
	var cErr *ConfigurationError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if dialed {
		t.Fatal("missing credential must fail before any network traffic")
	}
}

func TestAnalyzePermanentErrorSkipsRetry(t *testing.T) {
	perm := &llmclient.PermanentError{Err: errors.New("image rejected")}
	svc, dials, delays := scriptedService(t, []*fakeVision{{err: perm}})

	_, err := svc.Analyze(context.Background(), testImage(), Callbacks{})
	var pErr *llmclient.PermanentError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PermanentError to surface, got %v", err)
	}
	if *dials != 1 || len(*delays) != 0 {
		t.Fatalf("permanent failure must not retry: dials=%d delays=%v", *dials, *delays)
	}
}

func TestAnalyzeMalformedFinalJSONIsRetried(t *testing.T) {
	svc, dials, _ := scriptedService(t, []*fakeVision{
		{chunks: []string{`{"brand": OVERTURE`}}, // broken object
		{chunks: []string{fullJSON}},
	})

	rec, err := svc.Analyze(context.Background(), testImage(), Callbacks{})
	if err != nil {
		t.Fatalf("expected second attempt to recover, got %v", err)
	}
	if *dials != 2 || rec.Brand != "OVERTURE" {
		t.Fatalf("dials=%d rec=%+v", *dials, rec)
	}
}

func TestAnalyzeStreamScenario(t *testing.T) {
	chunks := []string{
		"LOG: Detected brand: OVERTURE\n",
		"LOG: Detected material: ROCK PLA\n",
		fullJSON,
	}
	svc, _, _ := scriptedService(t, []*fakeVision{{chunks: chunks}})

	var logs []LogEvent
	var boxes []BoxAnnotation
	rec, err := svc.Analyze(context.Background(), testImage(), Callbacks{
		OnLog: func(e LogEvent) { logs = append(logs, e) },
		OnBox: func(b BoxAnnotation) { boxes = append(boxes, b) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 log events, got %d: %+v", len(logs), logs)
	}
	if logs[0].Text != "Detected brand: OVERTURE" {
		t.Fatalf("unexpected first log: %q", logs[0].Text)
	}
	if len(boxes) != 0 {
		t.Fatalf("no box annotations expected, got %+v", boxes)
	}
	if rec.ColorHex != "#D76D3B" {
		t.Fatalf("unexpected hex: %q", rec.ColorHex)
	}
}

func TestAnalyzeStreamedEvidenceFillsSparseFinalJSON(t *testing.T) {
	chunks := []string{
		"LOG: Detected brand: OVERTURE\n",
		`{"material":"PLA","confidence":40}`,
	}
	svc, _, _ := scriptedService(t, []*fakeVision{{chunks: chunks}})

	rec, err := svc.Analyze(context.Background(), testImage(), Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Brand != "OVERTURE" {
		t.Fatalf("streamed brand lost: %+v", rec)
	}
	if rec.Material != "PLA" {
		t.Fatalf("final material lost: %+v", rec)
	}
}

func TestAnalyzeCacheHitSkipsDial(t *testing.T) {
	cache, err := lru.New[string, Record](8)
	if err != nil {
		t.Fatal(err)
	}
	svc, dials, _ := scriptedService(t, []*fakeVision{{chunks: []string{fullJSON}}})
	svc.Cache = cache

	img := testImage()
	first, err := svc.Analyze(context.Background(), img, Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Analyze(context.Background(), img, Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	if *dials != 1 {
		t.Fatalf("second call should be served from cache, dials=%d", *dials)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cache must return the stored record: %+v vs %+v", first, second)
	}
}

func TestAnalyzeCancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc, dials, _ := scriptedService(t, []*fakeVision{
		{err: errors.New("transient")},
		{chunks: []string{fullJSON}},
	})
	svc.sleep = func(time.Duration) {}
	// Cancel between attempts via the dial hook.
	inner := svc.Dial
	svc.Dial = func(c context.Context, apiKey, model string) (llmclient.VisionClient, error) {
		cancel()
		return inner(c, apiKey, model)
	}

	_, err := svc.Analyze(ctx, testImage(), Callbacks{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if *dials != 1 {
		t.Fatalf("expected no further attempts after cancellation, got %d", *dials)
	}
}

func TestAnalyzeBackoffWakesOnCancellation(t *testing.T) {
	svc, dials, _ := scriptedService(t, []*fakeVision{
		{err: errors.New("transient")},
		{chunks: []string{fullJSON}},
	})
	svc.sleep = nil // exercise the real timer path

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := svc.Analyze(ctx, testImage(), Callbacks{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("backoff ignored cancellation, waited %v", elapsed)
	}
	if *dials != 1 {
		t.Fatalf("expected no further attempts after cancellation, got %d", *dials)
	}
}

func TestAnalyzeClosesClientPerAttempt(t *testing.T) {
	attempts := []*fakeVision{
		{err: errors.New("transient")},
		{chunks: []string{fullJSON}},
	}
	svc, _, _ := scriptedService(t, attempts)

	if _, err := svc.Analyze(context.Background(), testImage(), Callbacks{}); err != nil {
		t.Fatal(err)
	}
	for i, f := range attempts {
		if !f.closed {
			t.Fatalf("attempt %d client left open", i+1)
		}
	}
}
