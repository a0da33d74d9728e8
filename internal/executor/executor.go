package executor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// RequestOption mutates the outgoing *http.Request before it is sent
type RequestOption func(*http.Request)

// WithHeader sets a single header
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// Options configures an Executor
type Options struct {
	TLS     *types.TLSConfig
	Timeout time.Duration
	// Wrap decorates the base transport (e.g. with a response cache)
	Wrap   func(http.RoundTripper) http.RoundTripper
	Logger *zap.Logger
}

// Executor performs HTTP requests against the prediction API
type Executor struct {
	client *http.Client
	logger *zap.Logger
}

// New builds an Executor with optional TLS/mTLS configuration
func New(opts Options) (*Executor, error) {
	transport, err := buildTransport(opts.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	var rt http.RoundTripper = transport
	if opts.Wrap != nil {
		rt = opts.Wrap(rt)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Executor{
		client: &http.Client{
			Timeout:   timeout,
			Transport: rt,
		},
		logger: logger,
	}, nil
}

// Execute performs an HTTP request and returns the result. Transport
// failures are reported in RequestResult.Error; the returned error is
// only for requests that could not be built.
func (e *Executor) Execute(ctx context.Context, req *types.HttpRequest, opts ...RequestOption) (*types.RequestResult, error) {
	startTime := time.Now()

	var bodyReader io.Reader
	requestSize := 0
	if req.Body != "" {
		bodyReader = strings.NewReader(req.Body)
		requestSize = len(req.Body)
	}

	// Create HTTP request
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers, then per-call options such as the bearer token
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	for _, opt := range opts {
		opt(httpReq)
	}

	resp, err := e.client.Do(httpReq)
	duration := time.Since(startTime).Milliseconds()

	if err != nil {
		e.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.String("category", CategorizeError(err)),
			zap.Error(err))
		return &types.RequestResult{
			Error:       err.Error(),
			Duration:    duration,
			RequestSize: requestSize,
		}, nil
	}
	defer resp.Body.Close()

	// Read response body
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &types.RequestResult{
			Status:      resp.StatusCode,
			StatusText:  resp.Status,
			Error:       fmt.Sprintf("failed to read response body: %v", err),
			Duration:    duration,
			RequestSize: requestSize,
		}, nil
	}

	// Build response headers map
	headers := make(map[string]string)
	for key, values := range resp.Header {
		headers[key] = strings.Join(values, ", ")
	}

	e.logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", duration))

	return &types.RequestResult{
		Status:       resp.StatusCode,
		StatusText:   resp.Status,
		Headers:      headers,
		Body:         string(bodyBytes),
		Duration:     duration,
		RequestSize:  requestSize,
		ResponseSize: len(bodyBytes),
	}, nil
}

// buildTransport creates a transport with optional TLS/mTLS configuration
func buildTransport(tlsConfig *types.TLSConfig) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if tlsConfig == nil {
		return transport, nil
	}

	tlsCfg := &tls.Config{
		InsecureSkipVerify: tlsConfig.InsecureSkipVerify,
	}

	// Client certificate for mTLS
	if tlsConfig.CertFile != "" && tlsConfig.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	// CA certificate for server verification
	if tlsConfig.CAFile != "" {
		caCert, err := os.ReadFile(tlsConfig.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = caCertPool
	}

	transport.TLSClientConfig = tlsCfg
	return transport, nil
}

// FormatDuration formats duration in milliseconds to human-readable string
func FormatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	return fmt.Sprintf("%.2fs", seconds)
}

// FormatSize formats byte size to human-readable string
func FormatSize(bytes int) string {
	if bytes < 1024 {
		return fmt.Sprintf("%dB", bytes)
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.2fKB", float64(bytes)/1024.0)
	}
	return fmt.Sprintf("%.2fMB", float64(bytes)/(1024.0*1024.0))
}

// IsSuccessStatus returns true if status code is 2xx
func IsSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}
