package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/noah-isme/backend-printshop/internal/address"
	"github.com/noah-isme/backend-printshop/internal/pricing"
	"github.com/noah-isme/backend-printshop/internal/shipping"
	"github.com/noah-isme/backend-printshop/internal/sku"
)

type rootOptions struct {
	rulesPath string
	asJSON    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "pricectl",
		Short: "Offline pricing, SKU and shipping estimate tool",
		Long: `pricectl exercises the storefront pricing engine without partner access.

Examples:
  pricectl sku lookup --size medium --style canvas --material canvas
  pricectl sku alternatives GLOBAL-CFP-16X20-BLACK
  pricectl estimate --country GB --city London --item GLOBAL-CAN-16X20:1:49.99
  pricectl total --item GLOBAL-CAN-16X20:1:29.99 --shipping 9.99`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "YAML file overriding the embedded SKU rules")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of text")

	root.AddCommand(newSKUCmd(opts), newEstimateCmd(opts), newTotalCmd(opts))
	return root
}

func (o *rootOptions) resolver() (*sku.Resolver, error) {
	cfg := sku.Config{Logger: zerolog.Nop()}
	if o.rulesPath != "" {
		f, err := os.Open(o.rulesPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if cfg.Rules, err = sku.LoadRules(f); err != nil {
			return nil, err
		}
	}
	return sku.NewResolver(cfg), nil
}

func (o *rootOptions) print(w io.Writer, v any, text func(io.Writer)) error {
	if o.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func newSKUCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "sku", Short: "Resolve product SKUs"}

	var size, style, material string
	lookup := &cobra.Command{
		Use:   "lookup",
		Short: "Map a size, style and material to a partner SKU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := opts.resolver()
			if err != nil {
				return err
			}
			got := r.ProductSKU(size, style, material)
			return opts.print(cmd.OutOrStdout(), map[string]string{"sku": got}, func(w io.Writer) {
				fmt.Fprintln(w, got)
			})
		},
	}
	lookup.Flags().StringVar(&size, "size", "medium", "size bucket")
	lookup.Flags().StringVar(&style, "style", "canvas", "product style")
	lookup.Flags().StringVar(&material, "material", "canvas", "material")

	alternatives := &cobra.Command{
		Use:   "alternatives SKU",
		Short: "List replacement candidates for a rejected SKU",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.resolver()
			if err != nil {
				return err
			}
			alts := r.FindAlternatives(cmd.Context(), args[0])
			return opts.print(cmd.OutOrStdout(), alts, func(w io.Writer) {
				for _, a := range alts {
					fmt.Fprintln(w, a)
				}
			})
		},
	}

	cmd.AddCommand(lookup, alternatives)
	return cmd
}

func newEstimateCmd(opts *rootOptions) *cobra.Command {
	var (
		items    []string
		addr     address.Address
		methods  []string
		currency string
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate shipping with the local fallback tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines, err := parseItems(items)
			if err != nil {
				return err
			}
			shipItems := make([]shipping.Item, 0, len(lines))
			for _, l := range lines {
				price := l.Price
				shipItems = append(shipItems, shipping.Item{SKU: l.SKU, Quantity: l.Quantity, Price: &price})
			}
			addr.CountryCode = strings.ToUpper(addr.CountryCode)
			svc := shipping.NewService(shipping.Config{Logger: zerolog.Nop()})
			out := svc.CalculateGuaranteed(cmd.Context(), shipItems, addr, shipping.Options{Methods: methods, Currency: currency}, false)
			return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				for _, q := range out.Result.Quotes {
					fmt.Fprintf(w, "%-12s %-10s %2d days\n", q.Service, shipping.FormatShippingCost(q), q.EstimatedDays)
				}
				fmt.Fprintf(w, "recommended: %s (%s)\n", out.Result.Recommended.Service, out.Kind)
			})
		},
	}
	cmd.Flags().StringArrayVar(&items, "item", nil, "SKU:QTY:PRICE, repeatable")
	cmd.Flags().StringVar(&addr.CountryCode, "country", "US", "destination ISO country code")
	cmd.Flags().StringVar(&addr.City, "city", "", "destination city")
	cmd.Flags().StringVar(&addr.PostalCode, "postal-code", "", "destination postal code")
	cmd.Flags().StringSliceVar(&methods, "method", nil, "shipping methods to estimate")
	cmd.Flags().StringVar(&currency, "currency", "", "quote currency (defaults to the destination's)")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func newTotalCmd(opts *rootOptions) *cobra.Command {
	var (
		items    []string
		ship     string
		discount string
		taxRate  string
	)
	cmd := &cobra.Command{
		Use:   "total",
		Short: "Compute order totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines, err := parseItems(items)
			if err != nil {
				return err
			}
			cfg := pricing.DefaultConfig()
			if taxRate != "" {
				if cfg.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
					return fmt.Errorf("--tax-rate: %w", err)
				}
			}
			var charge *pricing.ShippingCharge
			if ship != "" {
				cost, err := decimal.NewFromString(ship)
				if err != nil {
					return fmt.Errorf("--shipping: %w", err)
				}
				charge = &pricing.ShippingCharge{Cost: cost, Service: "Standard"}
			}
			off := decimal.Zero
			if discount != "" {
				if off, err = decimal.NewFromString(discount); err != nil {
					return fmt.Errorf("--discount: %w", err)
				}
			}
			res, err := pricing.NewCalculator(cfg).Total(lines, charge, off)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				row := func(label string, v decimal.Decimal) {
					fmt.Fprintf(w, "%-9s %12s\n", label, pricing.FormatPrice(v, res.Currency))
				}
				row("subtotal", res.Subtotal)
				row("tax", res.TaxAmount)
				row("shipping", res.ShippingAmount)
				row("discount", res.DiscountAmount)
				row("total", res.Total)
			})
		},
	}
	cmd.Flags().StringArrayVar(&items, "item", nil, "SKU:QTY:PRICE, repeatable")
	cmd.Flags().StringVar(&ship, "shipping", "", "shipping cost")
	cmd.Flags().StringVar(&discount, "discount", "", "discount amount")
	cmd.Flags().StringVar(&taxRate, "tax-rate", "", "tax rate override, e.g. 0.2")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

// parseItems reads SKU:QTY:PRICE triples.
func parseItems(raw []string) ([]pricing.Item, error) {
	out := make([]pricing.Item, 0, len(raw))
	for _, r := range raw {
		parts := strings.Split(r, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("item %q: want SKU:QTY:PRICE", r)
		}
		qty, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("item %q: quantity: %w", r, err)
		}
		price, err := decimal.NewFromString(parts[2])
		if err != nil {
			return nil, fmt.Errorf("item %q: price: %w", r, err)
		}
		out = append(out, pricing.Item{ID: uuid.NewString(), SKU: strings.ToUpper(parts[0]), Quantity: qty, Price: price})
	}
	return out, nil
}
