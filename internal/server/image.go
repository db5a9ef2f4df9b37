package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	llmclient "spoolscan/internal/llmClient"
)

// decodeImagePayload accepts the browser's capture as raw base64 or a
// data URL and returns the decoded bytes with a best-effort MIME type.
func decodeImagePayload(s string) (llmclient.Image, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return llmclient.Image{}, fmt.Errorf("image payload is empty")
	}

	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return llmclient.Image{}, fmt.Errorf("malformed data url")
		}
		meta := s[len("data:"):idx]
		if semi := strings.IndexByte(meta, ';'); semi >= 0 {
			hintMIME = meta[:semi]
		} else {
			hintMIME = meta
		}
		s = s[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some encoders produce the URL-safe alphabet.
		data, err = base64.URLEncoding.DecodeString(s)
		if err != nil {
			return llmclient.Image{}, fmt.Errorf("decode image base64: %w", err)
		}
	}
	if len(data) == 0 {
		return llmclient.Image{}, fmt.Errorf("image payload is empty")
	}

	mime := strings.TrimSpace(hintMIME)
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return llmclient.Image{MIME: mime, Data: data}, nil
}
