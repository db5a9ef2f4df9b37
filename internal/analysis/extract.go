package analysis

import (
	"regexp"
	"strconv"
	"strings"
)

// The model narrates what it sees in free text, so every pattern demands the
// explicit "Detected <field>:" lead-in. Matching bare keywords anywhere in a
// sentence produces false positives ("product identification sticker" is not
// a brand), which is why none of these patterns are allowed to float.
var (
	brandRe    = regexp.MustCompile(`(?i:detected\s+(?:brand|manufacturer)(?:\s+name)?\s*:)\s*([A-Z][A-Za-z0-9 &®™-]*)`)
	materialRe = regexp.MustCompile(`(?i:detected\s+(?:material|type)(?:\s+type)?\s*:)\s*([A-Z][A-Za-z0-9 +-]*)`)
	colorRe    = regexp.MustCompile(`(?i:detected\s+colou?r(?:\s+name)?\s*:)\s*([A-Z][A-Za-z -]*)`)
	hexRe      = regexp.MustCompile(`#[0-9A-Fa-f]{6}`)
	nozzleRe   = regexp.MustCompile(`(?i)\bnozzle\b(?:\s+temp(?:erature)?)?(?:\s+range)?\s*:?\s*(\d+)\s*[-–—]\s*(\d+)`)
	bedRe      = regexp.MustCompile(`(?i)\bbed\b(?:\s+temp(?:erature)?)?(?:\s+range)?\s*:?\s*(\d+)\s*[-–—]\s*(\d+)`)
	weightRe   = regexp.MustCompile(`(?i)(\d+)\s*kg`)
)

var brandStopWords = map[string]bool{
	"name":         true,
	"brand":        true,
	"manufacturer": true,
	"the":          true,
	"is":           true,
}

var materialNoise = []string{"may not", "inherently", "with ", "made "}

var colorNoise = []string{"name on", "separate", "and ", "provide"}

// Extract scans one line of model output for filament fields. It is pure:
// no match for a field simply leaves that field absent, and the line order
// or any previous call has no influence on the result.
func Extract(line string) Partial {
	var p Partial

	if m := brandRe.FindStringSubmatch(line); m != nil {
		if v, ok := validBrand(m[1]); ok {
			p.Brand = v
		}
	}
	if m := materialRe.FindStringSubmatch(line); m != nil {
		if v, ok := validCapture(m[1], materialNoise); ok {
			p.Material = v
		}
	}
	if m := colorRe.FindStringSubmatch(line); m != nil {
		if v, ok := validCapture(m[1], colorNoise); ok {
			p.ColorName = v
		}
	}
	if m := hexRe.FindString(line); m != "" {
		p.ColorHex = "#" + strings.ToUpper(m[1:])
	}
	if m := nozzleRe.FindStringSubmatch(line); m != nil {
		lo, hi := atoi(m[1]), atoi(m[2])
		p.MinTemp, p.MaxTemp = &lo, &hi
	}
	if m := bedRe.FindStringSubmatch(line); m != nil {
		lo, hi := atoi(m[1]), atoi(m[2])
		p.BedTempMin, p.BedTempMax = &lo, &hi
	}
	if m := weightRe.FindStringSubmatch(line); m != nil {
		p.Weight = m[1] + "kg"
	}

	return p
}

func validBrand(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if len(v) <= 2 || len(v) > 50 {
		return "", false
	}
	if brandStopWords[strings.ToLower(v)] {
		return "", false
	}
	if !startsUpper(v) {
		return "", false
	}
	return v, true
}

// validCapture applies the shared material/color guards: a (2,30] length
// bound, a leading capital, and rejection of narrative fragments that mean
// the pattern ate prose instead of a label value.
func validCapture(raw string, noise []string) (string, bool) {
	v := strings.TrimSpace(raw)
	if len(v) <= 2 || len(v) > 30 {
		return "", false
	}
	if !startsUpper(v) {
		return "", false
	}
	lower := strings.ToLower(v)
	for _, frag := range noise {
		if strings.Contains(lower, frag) {
			return "", false
		}
	}
	return v, true
}

func startsUpper(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
