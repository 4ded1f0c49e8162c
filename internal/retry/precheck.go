package retry

import (
	"context"
	"net/http"
	"time"
)

// PrecheckTimeout bounds the whole precheck round: at least one reachable
// endpoint must respond within this window for the network to count as up.
const PrecheckTimeout = 2500 * time.Millisecond

// reliableEndpoints are well-known, highly-available hosts used only to
// detect whether outbound HTTP is reachable at all — never to validate a
// specific backend's credentials.
var reliableEndpoints = []string{
	"https://www.google.com/generate_204",
	"https://connectivitycheck.gstatic.com/generate_204",
	"https://www.cloudflare.com/cdn-cgi/trace",
}

// HTTPPrechecker implements Prechecker with a concurrent HEAD race against
// reliableEndpoints.
type HTTPPrechecker struct {
	client *http.Client
}

// NewHTTPPrechecker builds an HTTPPrechecker sharing httpClient with the
// rest of the backend layer. A nil client defaults to http.DefaultClient.
func NewHTTPPrechecker(httpClient *http.Client) *HTTPPrechecker {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPPrechecker{client: httpClient}
}

// Check races a HEAD request against every reliableEndpoints entry and
// returns true on the first success within PrecheckTimeout.
func (p *HTTPPrechecker) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, PrecheckTimeout)
	defer cancel()

	result := make(chan bool, len(reliableEndpoints))

	for _, url := range reliableEndpoints {
		url := url

		go func() {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
			if err != nil {
				result <- false
				return
			}

			resp, err := p.client.Do(req)
			if err != nil {
				result <- false
				return
			}

			resp.Body.Close()
			result <- resp.StatusCode < http.StatusInternalServerError
		}()
	}

	for range reliableEndpoints {
		select {
		case ok := <-result:
			if ok {
				return true
			}
		case <-ctx.Done():
			return false
		}
	}

	return false
}
