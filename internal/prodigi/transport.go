package prodigi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-printshop/internal/fulfillment"
)

const maxErrorBody = 4 << 10

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	ctx, span := c.tracer.Start(ctx, "prodigi."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("prodigi.path", path))

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("prodigi: encode %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.logger.Warn().Err(err).Str("op", op).Dur("elapsed", time.Since(started)).Msg("prodigi_request_failed")
		return fmt.Errorf("prodigi: %s: %w", op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &fulfillment.APIError{Status: resp.StatusCode, Body: string(raw)}
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		c.logger.Warn().Int("status", resp.StatusCode).Str("op", op).Msg("prodigi_non_2xx")
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("prodigi: decode %s response: %w", op, err)
	}
	c.logger.Debug().Str("op", op).Dur("elapsed", time.Since(started)).Msg("prodigi_request")
	return nil
}

func parseAmount(n flexNumber) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, fmt.Errorf("missing amount")
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %s", d)
	}
	return d, nil
}
