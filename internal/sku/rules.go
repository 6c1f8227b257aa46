package sku

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Category groups confirmed-working SKUs.
type Category struct {
	Name string   `yaml:"category"`
	SKUs []string `yaml:"skus"`
}

// Rules is the partner-specific configuration driving SKU resolution.
type Rules struct {
	DefaultSKU   string            `yaml:"defaultSku"`
	Sizes        map[string]string `yaml:"sizes"`
	Table        map[string]string `yaml:"table"`
	KnownWorking []Category        `yaml:"knownWorking"`
	MinKnown     int               `yaml:"minKnown"`
	Templates    []string          `yaml:"templates"`
	Colors       []string          `yaml:"colors"`
	DefaultColor string            `yaml:"defaultColor"`

	knownPrefixes []string
}

// DefaultRules returns the embedded rule set.
func DefaultRules() *Rules {
	r, err := parseRules(bytes.NewReader(defaultRulesYAML))
	if err != nil {
		panic(fmt.Errorf("sku: embedded rules: %w", err))
	}
	return r
}

// LoadRules reads a YAML rule document, typically to override the embedded one.
func LoadRules(r io.Reader) (*Rules, error) {
	return parseRules(r)
}

func parseRules(r io.Reader) (*Rules, error) {
	var rules Rules
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("sku: decode rules: %w", err)
	}
	if strings.TrimSpace(rules.DefaultSKU) == "" {
		return nil, fmt.Errorf("sku: rules must define defaultSku")
	}
	if rules.MinKnown <= 0 {
		rules.MinKnown = 3
	}
	if rules.DefaultColor == "" {
		rules.DefaultColor = "BLACK"
	}
	table := make(map[string]string, len(rules.Table))
	for k, v := range rules.Table {
		table[strings.ToLower(k)] = strings.ToUpper(v)
	}
	rules.Table = table
	rules.knownPrefixes = derivePrefixes(rules.KnownWorking)
	return &rules, nil
}

var sizeTokenPattern = regexp.MustCompile(`(\d{1,3})X(\d{1,3})`)

// SizeToken extracts the "WxH" token from a SKU, e.g. "16X20". It returns ""
// when the SKU carries no size.
func SizeToken(sku string) string {
	return sizeTokenPattern.FindString(strings.ToUpper(sku))
}

// derivePrefixes returns the part of each known SKU before its size token,
// longest first so GLOBAL-FRA-CAN- wins over GLOBAL-.
func derivePrefixes(cats []Category) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range cats {
		for _, s := range c.SKUs {
			upper := strings.ToUpper(s)
			loc := sizeTokenPattern.FindStringIndex(upper)
			if loc == nil || loc[0] == 0 {
				continue
			}
			p := upper[:loc[0]]
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func (r *Rules) hasKnownPrefix(sku string) bool {
	upper := strings.ToUpper(sku)
	for _, p := range r.knownPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

func (r *Rules) colorOf(sku string) string {
	upper := strings.ToUpper(sku)
	for _, c := range r.Colors {
		if strings.Contains(upper, "-"+strings.ToUpper(c)) {
			return strings.ToUpper(c)
		}
	}
	return r.DefaultColor
}

func (r *Rules) expand(template, size, color string) string {
	out := strings.ReplaceAll(template, "{size}", size)
	out = strings.ReplaceAll(out, "{color}", color)
	return strings.ToUpper(out)
}
