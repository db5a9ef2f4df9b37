package analysis

import (
	"strings"
)

// Record is the structured result of one spool-label analysis.
// Field names mirror the JSON object the model is instructed to emit.
type Record struct {
	Brand        string        `json:"brand"`
	Material     string        `json:"material"`
	ColorName    string        `json:"colorName"`
	ColorHex     string        `json:"colorHex"`
	MinTemp      int           `json:"minTemp"`
	MaxTemp      int           `json:"maxTemp"`
	BedTempMin   int           `json:"bedTempMin"`
	BedTempMax   int           `json:"bedTempMax"`
	Weight       string        `json:"weight"`
	Notes        string        `json:"notes"`
	Hygroscopy   string        `json:"hygroscopy"`
	Confidence   float64       `json:"confidence"`
	Alternatives []Alternative `json:"alternatives"`
	ReferenceURL string        `json:"referenceUrl,omitempty"`
	Source       string        `json:"source,omitempty"`
}

// Alternative is a candidate identification the model is less sure about.
type Alternative struct {
	Brand     string `json:"brand,omitempty"`
	Material  string `json:"material,omitempty"`
	ColorName string `json:"colorName,omitempty"`
}

// Partial holds the fields recognized so far from streamed log lines.
// A zero value means "no evidence yet"; absent fields stay absent.
type Partial struct {
	Brand      string
	Material   string
	ColorName  string
	ColorHex   string
	MinTemp    *int
	MaxTemp    *int
	BedTempMin *int
	BedTempMax *int
	Weight     string
}

// Overlay folds newer evidence into p. Non-empty fields of q win; empty
// fields never clear anything already set, so the accumulated record only
// ever grows.
func (p *Partial) Overlay(q Partial) {
	if q.Brand != "" {
		p.Brand = q.Brand
	}
	if q.Material != "" {
		p.Material = q.Material
	}
	if q.ColorName != "" {
		p.ColorName = q.ColorName
	}
	if q.ColorHex != "" {
		p.ColorHex = q.ColorHex
	}
	if q.MinTemp != nil {
		p.MinTemp = q.MinTemp
	}
	if q.MaxTemp != nil {
		p.MaxTemp = q.MaxTemp
	}
	if q.BedTempMin != nil {
		p.BedTempMin = q.BedTempMin
	}
	if q.BedTempMax != nil {
		p.BedTempMax = q.BedTempMax
	}
	if q.Weight != "" {
		p.Weight = q.Weight
	}
}

// IsZero reports whether no field has been recognized yet.
func (p Partial) IsZero() bool {
	return p == Partial{}
}

// recordPatch mirrors Record with every key optional, so the final JSON
// object can be applied without the absent keys stomping streamed evidence.
type recordPatch struct {
	Brand        *string       `json:"brand"`
	Material     *string       `json:"material"`
	ColorName    *string       `json:"colorName"`
	ColorHex     *string       `json:"colorHex"`
	MinTemp      *int          `json:"minTemp"`
	MaxTemp      *int          `json:"maxTemp"`
	BedTempMin   *int          `json:"bedTempMin"`
	BedTempMax   *int          `json:"bedTempMax"`
	Weight       *string       `json:"weight"`
	Notes        *string       `json:"notes"`
	Hygroscopy   *string       `json:"hygroscopy"`
	Confidence   *float64      `json:"confidence"`
	Alternatives []Alternative `json:"alternatives"`
}

// DefaultRecord is the baseline merged under streamed evidence and the final
// JSON. Defaults only fill keys nothing else touched.
func DefaultRecord() Record {
	return Record{
		Brand:        "Unknown",
		Material:     "PLA",
		ColorName:    "Unknown",
		ColorHex:     "#808080",
		MinTemp:      190,
		MaxTemp:      220,
		BedTempMin:   50,
		BedTempMax:   60,
		Weight:       "1kg",
		Hygroscopy:   "medium",
		Alternatives: []Alternative{},
	}
}

// mergeRecord builds the final record: defaults, then streamed evidence,
// then the parsed final JSON, in increasing precedence.
func mergeRecord(streamed Partial, final recordPatch) Record {
	rec := DefaultRecord()

	if streamed.Brand != "" {
		rec.Brand = streamed.Brand
	}
	if streamed.Material != "" {
		rec.Material = streamed.Material
	}
	if streamed.ColorName != "" {
		rec.ColorName = streamed.ColorName
	}
	if streamed.ColorHex != "" {
		rec.ColorHex = streamed.ColorHex
	}
	if streamed.MinTemp != nil {
		rec.MinTemp = *streamed.MinTemp
	}
	if streamed.MaxTemp != nil {
		rec.MaxTemp = *streamed.MaxTemp
	}
	if streamed.BedTempMin != nil {
		rec.BedTempMin = *streamed.BedTempMin
	}
	if streamed.BedTempMax != nil {
		rec.BedTempMax = *streamed.BedTempMax
	}
	if streamed.Weight != "" {
		rec.Weight = streamed.Weight
	}

	if final.Brand != nil && strings.TrimSpace(*final.Brand) != "" {
		rec.Brand = strings.TrimSpace(*final.Brand)
	}
	if final.Material != nil && strings.TrimSpace(*final.Material) != "" {
		rec.Material = strings.TrimSpace(*final.Material)
	}
	if final.ColorName != nil && strings.TrimSpace(*final.ColorName) != "" {
		rec.ColorName = strings.TrimSpace(*final.ColorName)
	}
	if final.ColorHex != nil && strings.TrimSpace(*final.ColorHex) != "" {
		rec.ColorHex = strings.TrimSpace(*final.ColorHex)
	}
	if final.MinTemp != nil {
		rec.MinTemp = *final.MinTemp
	}
	if final.MaxTemp != nil {
		rec.MaxTemp = *final.MaxTemp
	}
	if final.BedTempMin != nil {
		rec.BedTempMin = *final.BedTempMin
	}
	if final.BedTempMax != nil {
		rec.BedTempMax = *final.BedTempMax
	}
	if final.Weight != nil && strings.TrimSpace(*final.Weight) != "" {
		rec.Weight = strings.TrimSpace(*final.Weight)
	}
	if final.Notes != nil {
		rec.Notes = *final.Notes
	}
	if final.Hygroscopy != nil {
		if h := normalizeHygroscopy(*final.Hygroscopy); h != "" {
			rec.Hygroscopy = h
		}
	}
	if final.Confidence != nil {
		rec.Confidence = clampConfidence(*final.Confidence)
	}
	if final.Alternatives != nil {
		rec.Alternatives = final.Alternatives
	}

	rec.ColorHex = normalizeHex(rec.ColorHex)
	return rec
}

// normalizeHex forces the "#RRGGBB" uppercase form the rest of the system
// relies on. Anything unusable falls back to the input unchanged.
func normalizeHex(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	raw := strings.TrimPrefix(s, "#")
	if len(raw) != 6 {
		return s
	}
	for _, r := range raw {
		if !isHexDigit(r) {
			return s
		}
	}
	return "#" + strings.ToUpper(raw)
}

func isHexDigit(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		return true
	}
	return false
}

func normalizeHygroscopy(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return "low"
	case "medium", "med":
		return "medium"
	case "high":
		return "high"
	}
	return ""
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
