package commands

import (
	"fmt"
	"io"
	"orderexport/internal/extract"
	"orderexport/internal/order"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	parseUrl  *string
	parseId   *string
	parseList *bool
)

func init() {
	parseUrl = parseCmd.Flags().String("url", "", "The URL the page was saved from, used to tell store purchases apart.")
	parseId = parseCmd.Flags().String("id", "", "The order id, defaults to the file name.")
	parseList = parseCmd.Flags().Bool("list", false, "Treat the file as an order list page.")
	rootCmd.AddCommand(parseCmd)
}

func orderIdFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func renderOrder(w io.Writer, o order.Order) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Field", "Value"})
	rows := []table.Row{
		{"Order Number", o.OrderNumber},
		{"Order Date", o.OrderDate},
		{"Status", o.Status},
		{"Order Type", o.OrderType.Display()},
		{"Subtotal", o.Subtotal},
		{"Tax", o.Tax},
		{"Order Total", o.Total},
		{"Associate Discount", o.AssociateDiscount},
		{"Driver Tip", o.DriverTip},
		{"Delivery Fee", o.DeliveryFee},
		{"Express Fee", o.ExpressFee},
	}
	if !o.StoreLocation.IsZero() {
		rows = append(rows, table.Row{"Store Location", o.StoreLocation.String()})
	}
	t.AppendRows(rows)
	t.SetStyle(table.StyleRounded)
	t.Render()

	items := table.NewWriter()
	items.SetOutputMirror(w)
	items.AppendHeader(table.Row{"Item", "Price", "Quantity"})
	for _, it := range o.Items {
		items.AppendRow(table.Row{it.Name, it.Price, it.Quantity})
	}
	items.SetStyle(table.StyleRounded)
	items.Render()
}

func parseFile(w io.Writer, path, pageUrl, id string, list bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	if list {
		renderOrders(w, extract.CollectVisibleOrders(doc))
		return nil
	}
	if id == "" {
		id = orderIdFromPath(path)
	}
	renderOrder(w, extract.ParseOrderPage(pageUrl, doc, id))
	return nil
}

var parseCmd = &cobra.Command{
	Use:   "parse <file.html> [--url <page url>] [--id <order id>] [--list]",
	Short: "Runs the order parsers over a saved page and prints what they found.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return parseFile(cmd.OutOrStdout(), args[0], *parseUrl, *parseId, *parseList)
	},
}
