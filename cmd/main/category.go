package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"storefront/catalog/internal/container"
	"storefront/catalog/internal/service"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newCategoryCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "category <slug>",
		Short: "Print the products of one category",
		Args:  cobra.ExactArgs(1),
		Example: `  storefront-catalog category running-shoes
  storefront-catalog category running-shoes --output yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := container.NewLocal(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			selection, err := c.Service.Reconcile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return writeSelection(cmd.OutOrStdout(), selection, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")

	return cmd
}

type categoryOutput struct {
	Category string          `json:"category" yaml:"category"`
	Complete bool            `json:"complete" yaml:"complete"`
	Matched  int             `json:"matched" yaml:"matched"`
	Members  int             `json:"members" yaml:"members"`
	Pages    int             `json:"pages" yaml:"pages"`
	Products []productOutput `json:"products" yaml:"products"`
}

type productOutput struct {
	ID    string `json:"id" yaml:"id"`
	Slug  string `json:"slug,omitempty" yaml:"slug,omitempty"`
	Name  string `json:"name" yaml:"name"`
	Price string `json:"price" yaml:"price"`
}

func writeSelection(w io.Writer, selection *service.Selection, format string) error {
	out := categoryOutput{
		Category: selection.Category.Slug,
		Complete: selection.Result.Complete(),
		Matched:  len(selection.Result.Products),
		Members:  selection.Result.MembershipSize,
		Pages:    selection.Result.PagesFetched,
		Products: make([]productOutput, 0, len(selection.Result.Products)),
	}
	for _, p := range selection.Result.Products {
		out.Products = append(out.Products, productOutput{
			ID:    p.ID.String(),
			Slug:  p.Slug,
			Name:  p.Name,
			Price: strings.TrimSpace(p.Price.StringFixed(2) + " " + p.Currency),
		})
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(out)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
