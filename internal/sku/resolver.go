// Package sku maps frame attributes to partner SKUs and recovers from SKUs the
// partner rejects.
package sku

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-printshop/internal/common"
	"github.com/noah-isme/backend-printshop/internal/fulfillment"
	"github.com/noah-isme/backend-printshop/internal/obs"
)

// ErrNoAlternative is returned by Resolve when neither the SKU nor any
// alternative is accepted by the partner.
var ErrNoAlternative = &common.AppError{
	Kind:       common.KindUnavailable,
	Code:       "SKU_UNAVAILABLE",
	Message:    "no working alternative sku",
	HTTPStatus: 503,
}

// Prober confirms that the partner knows a SKU.
type Prober interface {
	GetProductDetails(ctx context.Context, sku string) (fulfillment.Product, error)
}

// Config configures a Resolver.
type Config struct {
	Rules    *Rules
	Searcher fulfillment.ProductSearcher
	Prober   Prober
	MinKnown int
	Logger   zerolog.Logger
}

// Resolver owns the failed-SKU set and the alternative cache. Both live for
// the lifetime of the Resolver and are only cleared together by Reset.
type Resolver struct {
	rules    *Rules
	searcher fulfillment.ProductSearcher
	prober   Prober
	minKnown int
	logger   zerolog.Logger

	mu           sync.RWMutex
	failed       map[string]struct{}
	alternatives map[string]string
}

// NewResolver constructs a Resolver, using the embedded rules when none are given.
func NewResolver(cfg Config) *Resolver {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	minKnown := cfg.MinKnown
	if minKnown <= 0 {
		minKnown = rules.MinKnown
	}
	return &Resolver{
		rules:        rules,
		searcher:     cfg.Searcher,
		prober:       cfg.Prober,
		minKnown:     minKnown,
		logger:       cfg.Logger,
		failed:       make(map[string]struct{}),
		alternatives: make(map[string]string),
	}
}

func normalize(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// ProductSKU maps size, style and material to a partner SKU. Unknown
// combinations return the default medium canvas SKU.
func (r *Resolver) ProductSKU(size, style, material string) string {
	size = strings.ToLower(strings.TrimSpace(size))
	style = strings.ToLower(strings.TrimSpace(style))
	material = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(material), "-", "_"))
	if v, ok := r.rules.Table[size+"-"+style+"-"+material]; ok {
		return v
	}
	if v, ok := r.rules.Table[size+"-any-"+material]; ok {
		return v
	}
	return r.rules.DefaultSKU
}

// RecordFailure marks sku as rejected by the partner. Repeated calls are no-ops.
func (r *Resolver) RecordFailure(sku string) {
	r.mu.Lock()
	r.failed[normalize(sku)] = struct{}{}
	r.mu.Unlock()
}

// RecordAlternative caches a working replacement for a failed SKU.
func (r *Resolver) RecordAlternative(failedSKU, alternative string) {
	r.mu.Lock()
	r.alternatives[normalize(failedSKU)] = normalize(alternative)
	r.mu.Unlock()
}

// IsFailed reports whether sku was recorded as failed.
func (r *Resolver) IsFailed(sku string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.failed[normalize(sku)]
	return ok
}

// CachedAlternative returns the cached replacement for failedSKU.
func (r *Resolver) CachedAlternative(failedSKU string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	alt, ok := r.alternatives[normalize(failedSKU)]
	return alt, ok
}

// Reset clears the failed set and the alternative cache together.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.failed = make(map[string]struct{})
	r.alternatives = make(map[string]string)
	r.mu.Unlock()
}

// State is a point-in-time copy of the resolver's state.
type State struct {
	Failed       []string          `json:"failedSkus"`
	Alternatives map[string]string `json:"alternativeSkus"`
}

// Snapshot copies the current state.
func (r *Resolver) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := State{Failed: make([]string, 0, len(r.failed)), Alternatives: make(map[string]string, len(r.alternatives))}
	for k := range r.failed {
		st.Failed = append(st.Failed, k)
	}
	sort.Strings(st.Failed)
	for k, v := range r.alternatives {
		st.Alternatives[k] = v
	}
	return st
}

// FindAlternatives lists replacement candidates for a rejected SKU, best
// first. Search errors are logged and ignored; the result never contains
// failedSKU, known-failed SKUs or duplicates.
func (r *Resolver) FindAlternatives(ctx context.Context, failedSKU string) []string {
	failed := normalize(failedSKU)
	if alt, ok := r.CachedAlternative(failed); ok && alt != failed && !r.IsFailed(alt) {
		obs.Inc(obs.SKUAlternativeLookupTotal, "cache")
		return []string{alt}
	}

	size := SizeToken(failed)
	var candidates []string
	for _, cat := range r.rules.KnownWorking {
		for _, s := range cat.SKUs {
			if size == "" || SizeToken(s) == size {
				candidates = append(candidates, normalize(s))
			}
		}
	}
	source := "known"
	if len(candidates) < r.minKnown {
		source = "guess"
		candidates = append(candidates, r.guesses(failed, size)...)
	}
	if found := r.search(ctx, size); len(found) > 0 {
		candidates = append(candidates, found...)
	}

	out := make([]string, 0, len(candidates))
	seen := map[string]struct{}{failed: {}}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if r.IsFailed(c) {
			continue
		}
		out = append(out, c)
	}
	obs.Inc(obs.SKUAlternativeLookupTotal, source)
	return r.PrioritizeAlternatives(out, failed)
}

func (r *Resolver) guesses(failed, size string) []string {
	sizes := []string{size}
	if size == "" {
		sizes = sizes[:0]
		for _, bucket := range []string{"small", "medium", "large", "extra_large"} {
			if s, ok := r.rules.Sizes[bucket]; ok {
				sizes = append(sizes, s)
			}
		}
	}
	color := r.rules.colorOf(failed)
	var out []string
	for _, s := range sizes {
		for _, tpl := range r.rules.Templates {
			out = append(out, r.rules.expand(tpl, s, color))
		}
	}
	return out
}

func (r *Resolver) search(ctx context.Context, size string) []string {
	if r.searcher == nil {
		return nil
	}
	products, err := r.searcher.SearchProducts(ctx, fulfillment.SearchCriteria{Query: size, Size: size, Limit: 10})
	if err != nil {
		r.logger.Warn().Err(err).Str("size", size).Msg("sku_search_failed")
		return nil
	}
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, normalize(p.SKU))
	}
	if len(out) > 0 {
		obs.Inc(obs.SKUAlternativeLookupTotal, "search")
	}
	return out
}

// PrioritizeAlternatives orders alternatives stably: known prefixes first,
// then SKUs sharing the failed SKU's size token, then everything else.
func (r *Resolver) PrioritizeAlternatives(alternatives []string, failedSKU string) []string {
	size := SizeToken(failedSKU)
	rank := func(s string) int {
		switch {
		case r.rules.hasKnownPrefix(s):
			return 0
		case size != "" && SizeToken(s) == size:
			return 1
		default:
			return 2
		}
	}
	out := append([]string(nil), alternatives...)
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

// Resolve returns a SKU the partner accepts: sku itself, a cached
// alternative, or the first alternative that passes a product lookup.
// Transport failures leave the state untouched and return sku unchanged.
func (r *Resolver) Resolve(ctx context.Context, sku string) (string, error) {
	sku = normalize(sku)
	if r.prober == nil {
		return sku, nil
	}
	if !r.IsFailed(sku) {
		ok, err := r.probe(ctx, sku)
		if err != nil {
			r.logger.Warn().Err(err).Str("sku", sku).Msg("sku_probe_unavailable")
			return sku, nil
		}
		if ok {
			return sku, nil
		}
		r.RecordFailure(sku)
	}
	if alt, ok := r.CachedAlternative(sku); ok && !r.IsFailed(alt) {
		return alt, nil
	}
	for _, alt := range r.FindAlternatives(ctx, sku) {
		ok, err := r.probe(ctx, alt)
		if err != nil {
			continue
		}
		if !ok {
			r.RecordFailure(alt)
			continue
		}
		r.RecordAlternative(sku, alt)
		r.logger.Info().Str("sku", sku).Str("alternative", alt).Msg("sku_alternative_found")
		return alt, nil
	}
	return "", fmt.Errorf("sku %s: %w", sku, ErrNoAlternative)
}

// probe returns (false, nil) when the partner rejects the SKU and an error
// when the partner could not be asked.
func (r *Resolver) probe(ctx context.Context, sku string) (bool, error) {
	_, err := r.prober.GetProductDetails(ctx, sku)
	if err == nil {
		return true, nil
	}
	var apiErr *fulfillment.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != 429 {
		return false, nil
	}
	return false, err
}
