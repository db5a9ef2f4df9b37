package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewRelay builds the same-origin relay for browser deployments: requests
// under the relay prefix are forwarded to the model provider with status,
// headers and body passed through unchanged. The proxy flushes immediately
// so streamed generate-content responses arrive chunk by chunk.
func NewRelay(upstream string) (http.Handler, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse relay upstream: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("relay upstream %q must be an absolute url", upstream)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			// The provider rejects browser origins; the relay is the origin now.
			pr.Out.Header.Del("Origin")
			pr.Out.Header.Del("Referer")
		},
		FlushInterval: -1,
	}
	return proxy, nil
}
