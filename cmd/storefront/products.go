package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type productsOptions struct {
	Category string
	Search   string
	JSON     bool
}

// NewProductsCommand lists the active catalog of the configured project.
func NewProductsCommand() *cobra.Command {
	opts := &productsOptions{}

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List active products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			api := backend.NewClient(cfg.Store.APIURL, cfg.Store.ProjectUUID)
			products := catalog.New(api, zap.NewNop())
			list, err := products.Filter(cmd.Context(), opts.Category, opts.Search)
			if err != nil {
				return err
			}

			if opts.JSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "UUID\tNAME\tPRICE\tVARIANTS")
			for _, p := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s %s\t%d\n", p.UUID, p.Name, checkout.FormatAmount(p.Price), p.Currency, len(p.Variants))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&opts.Category, "category", catalog.AllCategories, "filter by category id")
	cmd.Flags().StringVar(&opts.Search, "search", "", "filter by name")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print JSON")

	return cmd
}
