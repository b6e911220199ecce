package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/sunburntimer/internal/metrics"
)

// FetchResult describes one upstream call for the ingest audit log.
type FetchResult struct {
	HTTPStatus   int
	ResponseSize int
	RecordCount  int
	ParseErrors  int
	ParseError   string
}

var newBackOff = func() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	return bo
}

// getBody fetches url, retrying rate limits and server errors. Other failures are permanent.
func getBody(ctx context.Context, client *http.Client, source, endpoint, url string) ([]byte, *FetchResult, error) {
	result := &FetchResult{}
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := client.Do(req)
		metrics.UpstreamLatency.WithLabelValues(source, endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamCallsTotal.WithLabelValues(source, endpoint, "error").Inc()
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("fetch %s: %w", endpoint, err))
			}
			return fmt.Errorf("fetch %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		result.HTTPStatus = resp.StatusCode
		metrics.UpstreamCallsTotal.WithLabelValues(source, endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("fetch %s: status %d", endpoint, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			result.ResponseSize = len(b)
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", endpoint, resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		result.ResponseSize = len(body)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return nil, result, err
	}
	return body, result, nil
}
