package executor

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Category classifies a transport failure for diagnostics. The user only
// ever sees a generic message; the category goes to the log.
type Category string

const (
	CategoryNone        Category = ""
	CategoryCancelled   Category = "cancelled"
	CategoryTimeout     Category = "timeout"
	CategoryDNS         Category = "dns"
	CategoryRefused     Category = "connection_refused"
	CategoryReset       Category = "connection_reset"
	CategoryUnreachable Category = "unreachable"
	CategoryTLS         Category = "tls"
	CategoryInvalidURL  Category = "invalid_url"
	CategoryClosed      Category = "connection_closed"
	CategoryUnknown     Category = "unknown"
)

var categoryMessages = map[Category]string{
	CategoryCancelled:   "Request cancelled",
	CategoryTimeout:     "Request timeout - the prediction API took too long to respond",
	CategoryDNS:         "DNS resolution failed - verify the API host name",
	CategoryRefused:     "Connection refused - check that the prediction API is running on the configured port",
	CategoryReset:       "Connection reset by the prediction API",
	CategoryUnreachable: "Network unreachable - check the network connection",
	CategoryTLS:         "TLS error - check the tls block in config.jsonc",
	CategoryInvalidURL:  "Invalid API URL - baseUrl must be http:// or https://",
	CategoryClosed:      "Connection closed unexpectedly by the prediction API",
}

// Classify walks the error chain and returns its category
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}

	if errors.Is(err, context.Canceled) {
		return CategoryCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return CategoryTimeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED:
			return CategoryRefused
		case syscall.ECONNRESET:
			return CategoryReset
		case syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return CategoryUnreachable
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CategoryDNS
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Timeout() {
		return CategoryTimeout
	}

	var unknownAuth x509.UnknownAuthorityError
	var invalidCert x509.CertificateInvalidError
	var hostErr x509.HostnameError
	if errors.As(err, &unknownAuth) || errors.As(err, &invalidCert) || errors.As(err, &hostErr) {
		return CategoryTLS
	}

	return classifyMessage(err.Error())
}

// classifyMessage is the fallback for errors that only carry text
func classifyMessage(msg string) Category {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "context canceled"):
		return CategoryCancelled
	case strings.Contains(lower, "deadline exceeded"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"):
		return CategoryTimeout
	case strings.Contains(lower, "no such host"),
		strings.Contains(lower, "dial tcp: lookup"):
		return CategoryDNS
	case strings.Contains(lower, "connection refused"):
		return CategoryRefused
	case strings.Contains(lower, "connection reset"):
		return CategoryReset
	case strings.Contains(lower, "network is unreachable"),
		strings.Contains(lower, "no route to host"):
		return CategoryUnreachable
	case strings.Contains(lower, "tls"),
		strings.Contains(lower, "x509"),
		strings.Contains(lower, "certificate"):
		return CategoryTLS
	case strings.Contains(lower, "unsupported protocol"),
		strings.Contains(lower, "invalid url"):
		return CategoryInvalidURL
	case strings.Contains(lower, "eof"):
		return CategoryClosed
	}
	return CategoryUnknown
}

// CategorizeError returns a diagnostic message for a transport error
func CategorizeError(err error) string {
	c := Classify(err)
	if c == CategoryNone {
		return ""
	}
	if msg, ok := categoryMessages[c]; ok {
		return msg
	}
	return "Request failed: " + err.Error()
}

// CategorizeMessage is CategorizeError for errors already flattened to text,
// such as RequestResult.Error
func CategorizeMessage(msg string) string {
	if msg == "" {
		return ""
	}
	if m, ok := categoryMessages[classifyMessage(msg)]; ok {
		return m
	}
	return "Request failed: " + msg
}
