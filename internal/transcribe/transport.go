package transcribe

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// newHTTPClient builds a pooled client. Per-attempt deadlines come from the
// request context, so the client itself has no timeout.
func newHTTPClient(enableHTTP2 bool) *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if enableHTTP2 {
		if err := http2.ConfigureTransport(tr); err != nil {
			slog.Warn("[transcribe] http2 unavailable, using http/1.1", "error", err)
		}
	}
	return &http.Client{Transport: tr}
}
