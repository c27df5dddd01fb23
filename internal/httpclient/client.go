package httpclient

import (
	"net/http"
	"time"

	"github.com/example/ec-order-engine/internal/logger"
	"go.uber.org/zap"
)

// LoggingRoundTripper logs every outbound call with its status and latency.
// Query strings are not logged.
type LoggingRoundTripper struct {
	Proxied http.RoundTripper
}

func (lrt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	log := logger.Named("http").With(
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
	)

	resp, err := lrt.Proxied.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		log.Error("outbound request failed", zap.Duration("duration", duration), zap.Error(err))
		return nil, err
	}

	log.Debug("outbound request completed",
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)
	return resp, nil
}

// NewClient returns an http.Client with logging middleware and a hard
// timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &LoggingRoundTripper{Proxied: http.DefaultTransport},
		Timeout:   timeout,
	}
}
