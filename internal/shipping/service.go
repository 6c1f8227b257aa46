package shipping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-printshop/internal/address"
	"github.com/noah-isme/backend-printshop/internal/common"
	"github.com/noah-isme/backend-printshop/internal/fulfillment"
	"github.com/noah-isme/backend-printshop/internal/money"
	"github.com/noah-isme/backend-printshop/internal/obs"
	"github.com/noah-isme/backend-printshop/internal/resilience"
)

// Config configures a Service. Zero values fall back to the defaults noted
// on each field.
type Config struct {
	Client                fulfillment.QuoteClient
	ProviderName          string        // "prodigi"
	MaxAttempts           int           // 3
	BaseDelay             time.Duration // 1s
	Timeout               time.Duration // 10s
	Methods               []string      // Standard
	FreeShippingThreshold decimal.Decimal
	PlaceholderPrice      decimal.Decimal
	Rates                 money.RateProvider
	Logger                zerolog.Logger
	Now                   func() time.Time
}

// Service resolves shipping quotes through the fulfillment partner and
// estimates locally when the partner cannot answer.
type Service struct {
	cfg    Config
	tracer trace.Tracer
}

// NewService constructs a Service.
func NewService(cfg Config) *Service {
	if cfg.ProviderName == "" {
		cfg.ProviderName = "prodigi"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = []string{"Standard"}
	}
	if !cfg.FreeShippingThreshold.IsPositive() {
		cfg.FreeShippingThreshold = decimal.NewFromInt(100)
	}
	if !cfg.PlaceholderPrice.IsPositive() {
		cfg.PlaceholderPrice = decimal.RequireFromString("25.00")
	}
	if cfg.Rates == nil {
		cfg.Rates = money.DefaultRates()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/backend-printshop/internal/shipping"),
	}
}

func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.cfg.Logger
}

// Calculate asks the partner for a quote per requested method. It returns the
// partner's real prices; free shipping is never applied here.
func (s *Service) Calculate(ctx context.Context, items []Item, addr address.Address, opts Options) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.calculate")
	defer span.End()
	span.SetAttributes(attribute.String("shipping.country", addr.CountryCode), attribute.Int("shipping.items", len(items)))

	start := s.cfg.Now()
	res, err := s.calculate(ctx, items, addr, opts)
	outcome := "quoted"
	if err != nil {
		outcome = "failed"
		if common.KindOf(err) == common.KindValidation {
			outcome = "invalid"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	obs.Inc(obs.ShippingQuoteTotal, outcome)
	obs.ObserveShippingLatency(outcome, s.cfg.Now().Sub(start))
	return res, err
}

func (s *Service) calculate(ctx context.Context, items []Item, addr address.Address, opts Options) (Result, error) {
	opts.Methods = normalizeMethods(opts.Methods)
	if err := validateRequest(items, addr, opts); err != nil {
		return Result{}, err
	}
	if s.cfg.Client == nil {
		return Result{}, &ServiceError{Err: errors.New("shipping: no partner client configured")}
	}
	methods := opts.Methods
	if len(methods) == 0 {
		methods = s.cfg.Methods
	}
	currency := s.currencyFor(addr, opts)
	req := fulfillment.QuoteRequest{
		Items:       make([]fulfillment.QuoteItem, 0, len(items)),
		Destination: addr,
		Currency:    currency,
	}
	for _, it := range items {
		req.Items = append(req.Items, fulfillment.QuoteItem{SKU: it.SKU, Quantity: it.Quantity, Attributes: it.Attributes})
	}

	var (
		quotes   []Quote
		attempts int
		lastErr  error
	)
	for _, method := range methods {
		req.Method = method
		cost, n, err := s.quoteWithRetry(ctx, req)
		attempts += n
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		quotes = append(quotes, s.toQuote(cost, method, currency, opts))
	}
	if len(quotes) == 0 {
		return Result{}, &ServiceError{Attempts: attempts, Methods: methods, Err: lastErr}
	}
	sortQuotes(quotes)
	recommended, _ := Recommend(quotes)
	return Result{
		Quotes:           quotes,
		Recommended:      recommended,
		Provider:         s.cfg.ProviderName,
		IsEstimated:      false,
		Currency:         recommended.Currency,
		Attempts:         attempts,
		AddressValidated: true,
		CalculatedAt:     s.cfg.Now(),
	}, nil
}

func (s *Service) currencyFor(addr address.Address, opts Options) string {
	if opts.Currency != "" {
		return money.NormalizeCode(opts.Currency)
	}
	return money.CurrencyForCountry(addr.CountryCode)
}

func (s *Service) toQuote(cost fulfillment.ShippingCost, method, currency string, opts Options) Quote {
	cur := cost.Currency
	if cur == "" {
		cur = currency
	}
	service := cost.ServiceName
	if service == "" {
		service = method
	}
	carrier := cost.Carrier
	if carrier == "" {
		carrier = s.cfg.ProviderName
	}
	return Quote{
		Carrier:           carrier,
		Service:           service,
		Cost:              money.RoundCurrency(cost.Cost, cur),
		Currency:          cur,
		EstimatedDays:     cost.EstimatedDays,
		TrackingAvailable: cost.TrackingAvailable,
		SignatureRequired: opts.SignatureRequired,
	}
}

// quoteWithRetry returns the number of attempts made alongside the result.
func (s *Service) quoteWithRetry(ctx context.Context, req fulfillment.QuoteRequest) (fulfillment.ShippingCost, int, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		cost, err := s.callWithTimeout(ctx, req)
		if err == nil {
			obs.Inc(obs.ShippingQuoteAttempts, req.Method, "ok")
			return cost, attempt, nil
		}
		lastErr = err
		obs.Inc(obs.ShippingQuoteAttempts, req.Method, "error")
		if !retryable(err) || attempt == s.cfg.MaxAttempts {
			return fulfillment.ShippingCost{}, attempt, lastErr
		}
		delay := resilience.Backoff(s.cfg.BaseDelay, attempt, 0)
		s.logger(ctx).Warn().Err(err).
			Str("method", req.Method).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("shipping_quote_retry")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fulfillment.ShippingCost{}, attempt, fmt.Errorf("shipping: retry aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return fulfillment.ShippingCost{}, s.cfg.MaxAttempts, lastErr
}

// retryable reports false for partner 4xx answers other than 408 and 429;
// repeating an identical rejected request cannot succeed.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *fulfillment.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status == 408 || apiErr.Status == 429
		}
	}
	return true
}

type callResult struct {
	cost fulfillment.ShippingCost
	err  error
}

// callWithTimeout bounds one partner attempt by the configured timeout. The
// attempt's context is cancelled on return, so an abandoned HTTP call stops
// with it; a client that ignores ctx still lands in the buffered channel.
func (s *Service) callWithTimeout(ctx context.Context, req fulfillment.QuoteRequest) (fulfillment.ShippingCost, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	ch := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- callResult{err: fmt.Errorf("shipping: partner client panicked: %v", r)}
			}
		}()
		cost, err := s.cfg.Client.CalculateShippingCost(callCtx, req)
		ch <- callResult{cost: cost, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return fulfillment.ShippingCost{}, &TimeoutError{Timeout: s.cfg.Timeout}
		}
		return res.cost, res.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return fulfillment.ShippingCost{}, err
		}
		return fulfillment.ShippingCost{}, &TimeoutError{Timeout: s.cfg.Timeout}
	}
}

// CalculateGuaranteed never fails. When the partner quote cannot be obtained,
// or when an address the caller did not validate turns out invalid, it returns
// a local estimate tagged OutcomeEstimated.
func (s *Service) CalculateGuaranteed(ctx context.Context, items []Item, addr address.Address, opts Options, addressValidated bool) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("shipping: recovered from panic: %v", r)
			out = s.estimate(ctx, items, addr, opts, addressValidated, cause, "panic")
		}
	}()

	if !addressValidated {
		if err := ValidateShippingAddress(addr); err != nil {
			return s.estimate(ctx, items, addr, opts, false, err, "invalid_address")
		}
	}
	res, err := s.Calculate(ctx, items, addr, opts)
	if err == nil {
		res.AddressValidated = true
		return Outcome{Kind: OutcomeQuoted, Result: res}
	}
	return s.estimate(ctx, items, addr, opts, addressValidated, err, fallbackReason(err))
}

func (s *Service) estimate(ctx context.Context, items []Item, addr address.Address, opts Options, addressValidated bool, cause error, reason string) Outcome {
	res := s.Fallback(ctx, items, addr, opts)
	res.AddressValidated = addressValidated
	var svcErr *ServiceError
	if errors.As(cause, &svcErr) {
		res.Attempts = svcErr.Attempts
	}
	obs.Inc(obs.ShippingFallbackTotal, reason)
	obs.Inc(obs.ShippingQuoteTotal, "estimated")
	s.logger(ctx).Warn().Err(cause).
		Str("reason", reason).
		Str("country", addr.CountryCode).
		Str("recommended_cost", res.Recommended.Cost.String()).
		Msg("shipping_fallback_estimate")
	return Outcome{Kind: OutcomeEstimated, Result: res, Cause: cause}
}

func fallbackReason(err error) string {
	var timeout *TimeoutError
	switch {
	case errors.As(err, &timeout):
		return "timeout"
	case common.KindOf(err) == common.KindValidation:
		return "validation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "provider_failure"
	}
}

func normalizeMethods(methods []string) []string {
	if len(methods) == 0 {
		return nil
	}
	out := make([]string, 0, len(methods))
	seen := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		m = strings.ToUpper(m[:1]) + strings.ToLower(m[1:])
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func sortQuotes(quotes []Quote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].Cost.LessThan(quotes[j].Cost)
	})
}
