package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/storefront_layer/internal/search"
	"github.com/R3E-Network/storefront_layer/internal/storefront"
)

var (
	pageFlag     int
	pageSizeFlag int
	categoryFlag int64
	brandFlags   []string
)

// whoamiCmd represents the whoami command
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the resolved session context and the backend profile",
	Example: `  storefrontctl whoami --token "$TOKEN"
  STOREFRONT_AUTH_URL=https://auth.example.com storefrontctl whoami`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		rc := application.Context(ctx)

		out := map[string]interface{}{
			"tenant":    rc.TenantCode,
			"userId":    rc.UserID,
			"companyId": rc.CompanyID,
			"anonymous": rc.Anonymous(),
		}
		if _, ok := application.Client("auth"); ok && !rc.Anonymous() {
			profile, err := application.Auth().Me(ctx)
			if err != nil {
				return err
			}
			out["profile"] = profile
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

// productsCmd represents the products command
var productsCmd = &cobra.Command{
	Use:   "products [id]",
	Short: "List catalog products or show one",
	Args:  cobra.MaximumNArgs(1),
	Example: `  storefrontctl products --category 12 --page 2
  storefrontctl products 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		catalog := application.Catalog()

		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}
			product, err := catalog.GetProduct(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), product)
		}

		page, err := catalog.ListProducts(ctx, storefront.ProductListParams{
			Page:       pageFlag,
			PageSize:   pageSizeFlag,
			CategoryID: categoryFlag,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), page)
	},
}

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Run a product search",
	Example: `  storefrontctl search "coffee mug" --category 12
  storefrontctl search --brand Acme --brand Globex --page-size 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := application.Search().Search(commandContext(cmd), storefront.SearchRequest{
			Text:     strings.Join(args, " "),
			Filter:   scopeFilter(),
			Page:     pageFlag,
			PageSize: pageSizeFlag,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

// facetsCmd represents the facets command
var facetsCmd = &cobra.Command{
	Use:   "facets",
	Short: "Compute the facet filters for a catalog scope",
	Long: `Compute brands, categories, variant attributes and specifications with their
value counts for the given scope. Facets whose value lookup fails are left out
and reported on stderr; the command still succeeds.`,
	Example: `  storefrontctl facets --category 12
  storefrontctl facets --brand Acme`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := application.Search().Facets(commandContext(cmd), scopeFilter())
		if err != nil {
			return err
		}
		if partial := result.PartialFailure(); partial != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", partial)
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func scopeFilter() search.BoolQuery {
	var filter search.BoolQuery
	if categoryFlag != 0 {
		filter.Must = append(filter.Must, search.Term("categories.id", categoryFlag))
	}
	if len(brandFlags) > 0 {
		brands := make([]interface{}, 0, len(brandFlags))
		for _, b := range brandFlags {
			brands = append(brands, b)
		}
		filter.Filter = append(filter.Filter, search.Terms("brand.name.keyword", brands...))
	}
	return filter
}

func init() {
	for _, cmd := range []*cobra.Command{productsCmd, searchCmd} {
		cmd.Flags().IntVar(&pageFlag, "page", 1, "page number")
		cmd.Flags().IntVar(&pageSizeFlag, "page-size", 24, "results per page")
	}
	for _, cmd := range []*cobra.Command{productsCmd, searchCmd, facetsCmd} {
		cmd.Flags().Int64Var(&categoryFlag, "category", 0, "restrict to a category id")
	}
	for _, cmd := range []*cobra.Command{searchCmd, facetsCmd} {
		cmd.Flags().StringSliceVar(&brandFlags, "brand", nil, "restrict to brand names (repeatable)")
	}

	rootCmd.AddCommand(whoamiCmd, productsCmd, searchCmd, facetsCmd)
}
