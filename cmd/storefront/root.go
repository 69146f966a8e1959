package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCommand creates the storefront CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront cart and checkout client",
		Long:          "Serves a local JSON API for the cart and checkout flow of a hosted store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewProductsCommand())

	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	return cfg.Build()
}
