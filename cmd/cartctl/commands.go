package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/abgdnv/gocart/internal/cart"
	"github.com/abgdnv/gocart/internal/service"
	"github.com/spf13/cobra"
)

func (c *cli) addCmd() *cobra.Command {
	var form service.FormValues
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product to the cart",
		Long: `Add a product to the cart. A product already in the cart gets the quantity
added to its line; any other product is fetched from the catalog first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dto, err := c.cart.AddOrIncrement(cmd.Context(), form)
			if err != nil {
				return err
			}
			return printCart(cmd.OutOrStdout(), dto.Items)
		},
	}
	cmd.Flags().IntVar(&form.ProductID, "id", 0, "Product id")
	cmd.Flags().IntVarP(&form.Quantity, "quantity", "q", 1, fmt.Sprintf("Quantity to add (1-%d)", cart.MaxQuantity))
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (c *cli) updateCmd() *cobra.Command {
	var id, quantity int
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Set the quantity of a product in the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dto, err := c.cart.UpdateQuantity(cmd.Context(), id, quantity)
			if err != nil {
				return err
			}
			return printCart(cmd.OutOrStdout(), dto.Items)
		},
	}
	cmd.Flags().IntVar(&id, "id", 0, "Product id")
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 0, fmt.Sprintf("New quantity (0-%d)", cart.MaxQuantity))
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("quantity")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	var id int
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove a product from the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.cart.DeleteItem(cmd.Context(), id)
			return printCart(cmd.OutOrStdout(), c.cart.Items())
		},
	}
	cmd.Flags().IntVar(&id, "id", 0, "Product id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (c *cli) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every product from the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.cart.Clear(cmd.Context())
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Cart cleared")
			return err
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Print the cart",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printCart(cmd.OutOrStdout(), c.cart.Items())
		},
	}
}

func (c *cli) totalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "total",
		Short: "Print the cart total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), cart.FormatTotal(c.cart.TotalPrice()))
			return err
		},
	}
}

// printCart writes the lines as a table followed by the total.
func printCart(w io.Writer, items []cart.LineItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "Cart is empty")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tQTY\tSUBTOTAL")
	for _, item := range items {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			item.ID, item.Title, item.Price.StringFixed(2), item.Quantity, item.Subtotal().StringFixed(2))
	}
	_, _ = fmt.Fprintf(tw, "\t\t\tTOTAL\t%s\n", cart.FormatTotal(cart.Total(items)))
	return tw.Flush()
}
