package analysis

import (
	"regexp"
	"strings"
)

// Markers the system instruction tells the model to prefix progress lines
// with. Everything else in the stream is treated as ordinary text and kept
// for final JSON extraction.
const (
	logMarker = "LOG:"
	boxMarker = "BOX:"
)

// LogEvent is one progress line from the model, forwarded in arrival order.
type LogEvent struct {
	Text     string `json:"text"`
	Severity string `json:"severity,omitempty"`
}

// BoxAnnotation is one bounding box on the label image, on the model's
// 0-1000 normalized scale: [yMin, xMin, yMax, xMax].
type BoxAnnotation struct {
	Label string `json:"label"`
	Rect  [4]int `json:"rect"`
}

var boxRe = regexp.MustCompile(`^(.*?)\s*\[\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*\]$`)

// Demux splits a live model response into log lines, box annotations and the
// residual text carrying the final JSON. One Demux serves exactly one
// attempt; it is not safe for concurrent use and is cheap to recreate.
type Demux struct {
	onLog func(LogEvent)
	onBox func(BoxAnnotation)

	line    strings.Builder // tail not yet terminated by a line break
	full    strings.Builder // everything seen, for final JSON extraction
	partial Partial
}

func NewDemux(onLog func(LogEvent), onBox func(BoxAnnotation)) *Demux {
	return &Demux{onLog: onLog, onBox: onBox}
}

// Write consumes the next fragment of the response. Fragments can split
// lines anywhere, including mid-marker; completed lines are classified and
// dispatched strictly in arrival order.
func (d *Demux) Write(chunk string) {
	if chunk == "" {
		return
	}
	d.full.WriteString(chunk)
	d.line.WriteString(chunk)

	buf := d.line.String()
	for {
		idx := strings.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		d.classify(strings.TrimSpace(buf[:idx]))
		buf = buf[idx+1:]
	}
	d.line.Reset()
	d.line.WriteString(buf)
}

// Close ends the stream. The trailing unterminated line is already part of
// the full text, so it still reaches JSON extraction even without a final
// line break. Returns the accumulated raw text and the field evidence
// gathered from log lines.
func (d *Demux) Close() (string, Partial) {
	return d.full.String(), d.partial
}

func (d *Demux) classify(line string) {
	switch {
	case strings.HasPrefix(line, logMarker):
		text := strings.TrimSpace(line[len(logMarker):])
		d.partial.Overlay(Extract(text))
		if d.onLog != nil {
			d.onLog(LogEvent{Text: text, Severity: logSeverity(text)})
		}
	case strings.HasPrefix(line, boxMarker):
		// Malformed annotations are dropped, never fatal.
		if box, ok := parseBox(strings.TrimSpace(line[len(boxMarker):])); ok && d.onBox != nil {
			d.onBox(box)
		}
	}
}

// parseBox parses `Label [y0, x0, y1, x1]`, requiring exactly four
// comma-separated integers inside the brackets.
func parseBox(s string) (BoxAnnotation, bool) {
	m := boxRe.FindStringSubmatch(s)
	if m == nil {
		return BoxAnnotation{}, false
	}
	box := BoxAnnotation{Label: strings.TrimSpace(m[1])}
	for i := 0; i < 4; i++ {
		box.Rect[i] = atoi(m[i+2])
	}
	return box, true
}

func logSeverity(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "error"):
		return "error"
	case strings.Contains(lower, "warn"):
		return "warn"
	case strings.Contains(lower, "detected"):
		return "detect"
	}
	return ""
}
