package catalog

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-printshop/internal/fulfillment"
	"github.com/noah-isme/backend-printshop/internal/money"
	"github.com/noah-isme/backend-printshop/internal/sku"
)

// Size buckets, smallest first.
const (
	SizeSmall      = "small"
	SizeMedium     = "medium"
	SizeLarge      = "large"
	SizeExtraLarge = "extra_large"
)

var sizeOrder = map[string]int{SizeSmall: 0, SizeMedium: 1, SizeLarge: 2, SizeExtraLarge: 3}

// FrameOption is one selectable frame: a partner product in a single color.
type FrameOption struct {
	SKU         string                `json:"sku"`
	Size        string                `json:"size"`
	SizeLabel   string                `json:"sizeLabel"`
	Style       string                `json:"style"`
	Material    string                `json:"material"`
	Price       decimal.Decimal       `json:"price"`
	Currency    string                `json:"currency"`
	Dimensions  fulfillment.Dimension `json:"dimensions"`
	Category    string                `json:"category"`
	ProductType string                `json:"productType"`
	Available   bool                  `json:"available"`
}

// Combination summarises the options available in one size bucket.
type Combination struct {
	Size      string          `json:"size"`
	Styles    []string        `json:"styles"`
	Materials []string        `json:"materials"`
	Options   int             `json:"options"`
	FromPrice decimal.Decimal `json:"fromPrice"`
}

var frameKeywords = []string{"frame", "canvas", "print", "mount", "poster"}

var frameSKUTokens = []string{"FRA", "CFP", "CAN", "FAP", "MOUNT"}

// isFrameLike requires both a frame-ish category/type/SKU and at least one color.
func isFrameLike(p fulfillment.Product) bool {
	if len(p.Colors()) == 0 {
		return false
	}
	text := strings.ToLower(p.Category + " " + p.ProductType)
	for _, k := range frameKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	upper := strings.ToUpper(p.SKU)
	for _, t := range frameSKUTokens {
		if strings.Contains(upper, t) {
			return true
		}
	}
	return false
}

var colorSynonyms = map[string]string{
	"gray":           "grey",
	"dark grey":      "grey",
	"dark gray":      "grey",
	"charcoal":       "grey",
	"matt black":     "black",
	"matte black":    "black",
	"jet black":      "black",
	"off white":      "white",
	"off-white":      "white",
	"ivory":          "white",
	"oak":            "natural",
	"light wood":     "natural",
	"natural wood":   "natural",
	"walnut":         "brown",
	"dark brown":     "brown",
	"espresso":       "brown",
	"antique gold":   "gold",
	"antique silver": "silver",
}

// NormalizeColor maps partner color names onto the storefront palette.
// Unrecognised names are kept, lowercased.
func NormalizeColor(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if v, ok := colorSynonyms[c]; ok {
		return v
	}
	return c
}

type materialRule struct {
	name     string
	keywords []string
}

// Checked in order; the first match wins.
var materialRules = []materialRule{
	{"canvas", []string{"canvas", "-can-"}},
	{"metal", []string{"metal", "alu", "-met-"}},
	{"acrylic", []string{"acrylic", "acry", "perspex"}},
	{"bamboo", []string{"bamboo", "-bam-"}},
	{"plastic", []string{"plastic", "pvc", "polymer"}},
}

// InferMaterial guesses the frame material from SKU, category and type.
func InferMaterial(p fulfillment.Product) string {
	text := strings.ToLower(p.SKU + " " + p.Category + " " + p.ProductType)
	for _, rule := range materialRules {
		for _, k := range rule.keywords {
			if strings.Contains(text, k) {
				return rule.name
			}
		}
	}
	return "wood"
}

// SizeBucket classifies a diagonal measured in centimetres.
func SizeBucket(diagonalCM float64) string {
	switch {
	case diagonalCM < 45:
		return SizeSmall
	case diagonalCM < 70:
		return SizeMedium
	case diagonalCM < 100:
		return SizeLarge
	default:
		return SizeExtraLarge
	}
}

// dimensionsOf returns the product's width and height in cm. Products without
// dimensions fall back to the inch size token in their SKU.
func dimensionsOf(p fulfillment.Product) (fulfillment.Dimension, float64, float64, bool) {
	d := p.Dimensions
	if d.Width.IsPositive() && d.Height.IsPositive() {
		w, _ := d.Width.Float64()
		h, _ := d.Height.Float64()
		switch strings.ToLower(strings.TrimSpace(d.Units)) {
		case "in", "inch", "inches", "\"":
			return d, w * 2.54, h * 2.54, true
		case "mm":
			return d, w / 10, h / 10, true
		default:
			return d, w, h, true
		}
	}
	token := sku.SizeToken(p.SKU)
	if token == "" {
		return d, 0, 0, false
	}
	parts := strings.SplitN(token, "X", 2)
	w, err1 := decimal.NewFromString(parts[0])
	h, err2 := decimal.NewFromString(parts[1])
	if err1 != nil || err2 != nil {
		return d, 0, 0, false
	}
	d = fulfillment.Dimension{Width: w, Height: h, Units: "in"}
	wf, _ := w.Float64()
	hf, _ := h.Float64()
	return d, wf * 2.54, hf * 2.54, true
}

func sizeLabel(d fulfillment.Dimension) string {
	units := d.Units
	if units == "" {
		units = "cm"
	}
	return fmt.Sprintf("%s x %s %s", d.Width.String(), d.Height.String(), units)
}

// expand turns partner products into per-color frame options.
func expand(products []fulfillment.Product) []FrameOption {
	var out []FrameOption
	for _, p := range products {
		if !isFrameLike(p) {
			continue
		}
		dims, wcm, hcm, ok := dimensionsOf(p)
		if !ok {
			continue
		}
		bucket := SizeBucket(math.Sqrt(wcm*wcm + hcm*hcm))
		material := InferMaterial(p)
		currency := p.Currency
		if currency == "" {
			currency = money.DefaultCurrency
		}
		seen := map[string]struct{}{}
		for _, c := range p.Colors() {
			style := NormalizeColor(c)
			if style == "" {
				continue
			}
			if _, dup := seen[style]; dup {
				continue
			}
			seen[style] = struct{}{}
			out = append(out, FrameOption{
				SKU:         strings.ToUpper(p.SKU),
				Size:        bucket,
				SizeLabel:   sizeLabel(dims),
				Style:       style,
				Material:    material,
				Price:       money.Round2(p.Price),
				Currency:    strings.ToUpper(currency),
				Dimensions:  dims,
				Category:    p.Category,
				ProductType: p.ProductType,
				Available:   true,
			})
		}
	}
	sortOptions(out)
	return out
}

func sortOptions(opts []FrameOption) {
	sort.SliceStable(opts, func(i, j int) bool {
		a, b := opts[i], opts[j]
		if sizeOrder[a.Size] != sizeOrder[b.Size] {
			return sizeOrder[a.Size] < sizeOrder[b.Size]
		}
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		return a.Style < b.Style
	})
}

// FallbackOptions is served whenever the partner catalog cannot be read.
func FallbackOptions() []FrameOption {
	mk := func(skuCode, size string, w, h int64, price string) FrameOption {
		return FrameOption{
			SKU:         skuCode,
			Size:        size,
			SizeLabel:   fmt.Sprintf("%d x %d in", w, h),
			Style:       "black",
			Material:    "canvas",
			Price:       decimal.RequireFromString(price),
			Currency:    money.DefaultCurrency,
			Dimensions:  fulfillment.Dimension{Width: decimal.NewFromInt(w), Height: decimal.NewFromInt(h), Units: "in"},
			Category:    "canvas",
			ProductType: "canvas",
			Available:   true,
		}
	}
	return []FrameOption{
		mk("GLOBAL-CAN-10X12", SizeSmall, 10, 12, "29.99"),
		mk("GLOBAL-CAN-16X20", SizeMedium, 16, 20, "49.99"),
		mk("GLOBAL-CAN-20X30", SizeLarge, 20, 30, "79.99"),
		mk("GLOBAL-CAN-30X40", SizeExtraLarge, 30, 40, "119.99"),
	}
}

// Combinations groups options by size bucket.
func Combinations(opts []FrameOption) []Combination {
	bySize := map[string]*Combination{}
	styleSeen := map[string]map[string]struct{}{}
	materialSeen := map[string]map[string]struct{}{}
	for _, o := range opts {
		c, ok := bySize[o.Size]
		if !ok {
			c = &Combination{Size: o.Size, FromPrice: o.Price}
			bySize[o.Size] = c
			styleSeen[o.Size] = map[string]struct{}{}
			materialSeen[o.Size] = map[string]struct{}{}
		}
		c.Options++
		if o.Price.LessThan(c.FromPrice) {
			c.FromPrice = o.Price
		}
		if _, dup := styleSeen[o.Size][o.Style]; !dup {
			styleSeen[o.Size][o.Style] = struct{}{}
			c.Styles = append(c.Styles, o.Style)
		}
		if _, dup := materialSeen[o.Size][o.Material]; !dup {
			materialSeen[o.Size][o.Material] = struct{}{}
			c.Materials = append(c.Materials, o.Material)
		}
	}
	out := make([]Combination, 0, len(bySize))
	for _, c := range bySize {
		sort.Strings(c.Styles)
		sort.Strings(c.Materials)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return sizeOrder[out[i].Size] < sizeOrder[out[j].Size] })
	return out
}
