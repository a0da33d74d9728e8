/*
Package executor performs HTTP requests against the prediction API.

# Overview

An Executor wraps a single *http.Client built once per process:
  - TLS/mTLS configuration from the settings file
  - A fixed request timeout
  - An optional RoundTripper decorator (the response cache)

# Results

Execute returns a types.RequestResult for every request that reached the
transport. Network failures land in RequestResult.Error rather than the
returned error, so callers can treat "no response" and "bad status" in one
place. The returned error is reserved for requests that could not be built.

# Error Categories

Classify maps transport errors to a Category (timeout, refused, dns, tls and
so on). CategorizeError turns that into a one-line diagnostic for logs and
the CLI. User-facing prediction failures stay generic.

# Example Usage

	exec, err := executor.New(executor.Options{Timeout: 30 * time.Second})
	if err != nil {
		return err
	}

	result, err := exec.Execute(ctx, &types.HttpRequest{
		Method:  "POST",
		URL:     "http://127.0.0.1:8080/predict",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    `{"expression_values":[1.2,0.5,-0.8]}`,
	}, executor.WithHeader("X-Request-ID", id))

# Thread Safety

Execute is safe to call concurrently; the underlying client pools
connections.
*/
package executor
