package analysis

import (
	"net/url"
	"strings"

	llmclient "spoolscan/internal/llmClient"
	"spoolscan/internal/util/jsonutil"
)

// sourceFallback labels a citation whose URL would not yield a hostname.
const sourceFallback = "web"

// Finalize turns the accumulated stream text into the structured record.
// Log and box lines are removed again before JSON extraction even though the
// demultiplexer already routed them; a marker line that survived imperfect
// stripping must not leak into the parse.
func Finalize(fullText string, grounding []llmclient.GroundingSource, streamed Partial) (Record, error) {
	cleaned := dropMarkerLines(fullText)
	cleaned = jsonutil.StripFences(cleaned)

	obj, ok := jsonutil.ObjectSlice(cleaned)
	if !ok {
		return Record{}, ErrNoJSON
	}

	var patch recordPatch
	if err := jsonutil.UnmarshalFlex([]byte(obj), &patch); err != nil {
		return Record{}, &MalformedJSONError{Err: err}
	}

	rec := mergeRecord(streamed, patch)

	for _, g := range grounding {
		if g.URI == "" {
			continue
		}
		rec.ReferenceURL = g.URI
		rec.Source = sourceHost(g.URI)
		break
	}
	return rec, nil
}

func dropMarkerLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, logMarker) || strings.HasPrefix(t, boxMarker) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// sourceHost derives a short attribution label from a citation URL. A URL
// that cannot be parsed gets the fallback label instead of an error; a bad
// citation must not sink an otherwise good analysis.
func sourceHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return sourceFallback
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
