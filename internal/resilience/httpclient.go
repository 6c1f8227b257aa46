package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient sends partner requests through the breaker with a per-attempt
// timeout and exponential backoff between attempts.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	Timeout     time.Duration
	// Fallback, when set, receives the last error instead of the caller.
	Fallback func(context.Context, *http.Request, error) (*http.Response, error)
}

// Do sends req, retrying transport errors and 408/429/5xx responses. The body
// is buffered once and replayed on every attempt. When attempts run out on a
// retryable status the final response is returned unread so callers can
// report the partner's status and body.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}
	attempts := max(cl.MaxAttempts, 1)

	var lastErr error
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			if err := sleep(ctx, Backoff(cl.BaseBackoff, n-1, cl.Jitter)); err != nil {
				return nil, err
			}
		}
		if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
			lastErr = ErrOpenCircuit
			break
		}

		resp, err := cl.send(ctx, req, body)
		ok := err == nil && !retryStatus(resp.StatusCode)
		if cl.Breaker != nil {
			cl.Breaker.Report(ctx, ok)
		}
		switch {
		case ok:
			return resp, nil
		case err != nil:
			lastErr = err
		case n == attempts:
			return resp, nil
		default:
			lastErr = fmt.Errorf("resilience: upstream responded %s", resp.Status)
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
	}

	if cl.Fallback != nil {
		return cl.Fallback(ctx, req, lastErr)
	}
	return nil, lastErr
}

func (cl HTTPClient) send(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	cancel := context.CancelFunc(func() {})
	if cl.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cl.Timeout)
	}
	out := req.Clone(ctx)
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
	}
	resp, err := cl.Client.Do(out)
	if err != nil {
		cancel()
		return nil, err
	}
	// the attempt context must outlive Do until the caller has read the body
	resp.Body = bodyWithCancel{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type bodyWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b bodyWithCancel) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

func retryStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("resilience: buffer request body: %w", err)
	}
	return data, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
