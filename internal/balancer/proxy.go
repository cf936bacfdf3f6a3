package balancer

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/OldStager01/capacity-manager/internal/logger"
)

const retryBackoffStep = 100 * time.Millisecond

// ProxyRequest forwards one request through the balancer. A transport
// failure marks the chosen instance unhealthy and retries the next one with
// linear backoff; exhausting the retries answers 503.
func (lb *LoadBalancer) ProxyRequest(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			http.Error(w, `{"error":"failed to read request body"}`, http.StatusBadRequest)
			return
		}
	}

	clientIP := clientIP(r)

	for attempt := 1; attempt <= lb.config.MaxRetries; attempt++ {
		target, err := lb.NextInstance(clientIP)
		if err != nil {
			writeUnavailable(w, "no healthy instance available")
			return
		}

		resp, err := lb.forward(r, target, body)
		if err != nil {
			lb.ReleaseConnection(target.ID)
			lb.setHealthy(target.ID, false)
			logger.WithInstance(target.ID).Warnf("Proxy attempt %d/%d failed: %v", attempt, lb.config.MaxRetries, err)

			time.Sleep(retryBackoffStep * time.Duration(attempt))
			continue
		}

		copyResponse(w, resp)
		resp.Body.Close()
		lb.ReleaseConnection(target.ID)
		return
	}

	writeUnavailable(w, "all proxy attempts failed")
}

func (lb *LoadBalancer) forward(r *http.Request, target Instance, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.BaseURL+r.URL.RequestURI(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header = r.Header.Clone()
	if ip := clientIP(r); ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}

	return lb.client.Do(req)
}

func copyResponse(w http.ResponseWriter, resp *http.Response) {
	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func writeUnavailable(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
