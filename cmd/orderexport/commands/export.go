package commands

import (
	"fmt"
	"io"
	"orderexport/internal/export"
	"orderexport/internal/order"
	"orderexport/internal/relay"
	"orderexport/internal/telemetry"
	"orderexport/lib/chrono"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	exportItems       *bool
	exportExactPrices *bool
	exportAllPages    *bool
	exportDays        *string
	exportType        *string
	exportQuiet       *bool
)

func init() {
	exportItems = exportCmd.Flags().Bool("items", true, "Write one row per item instead of one row per order.")
	exportExactPrices = exportCmd.Flags().Bool("exact-prices", false, "Fetch every order's detail page for exact item prices (slow).")
	exportAllPages = exportCmd.Flags().Bool("all-pages", false, "Walk every page of the order history instead of only the first.")
	exportDays = exportCmd.Flags().String("days", "all", "Only export orders placed in the last N days, or \"all\".")
	exportType = exportCmd.Flags().String("type", "all", "Which orders to export: all, online or store.")
	exportQuiet = exportCmd.Flags().BoolP("quiet", "q", false, "Do not print the order table.")
	rootCmd.AddCommand(exportCmd)
}

func exportOptions() (export.Options, error) {
	dateRange, err := export.ParseDateRange(*exportDays)
	if err != nil {
		return export.Options{}, err
	}
	typeFilter, err := export.ParseTypeFilter(*exportType)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		IncludeItems:    *exportItems,
		FetchItemPrices: *exportExactPrices,
		AllPages:        *exportAllPages,
		DateRange:       dateRange,
		OrderTypeFilter: typeFilter,
	}, nil
}

func printProgress(w io.Writer) func(export.Progress) {
	return func(p export.Progress) {
		fmt.Fprintf(w, "[%3d%%] %s %s\n", p.Percent, p.Label, p.Detail)
	}
}

func renderOrders(w io.Writer, orders []order.Order) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Order", "Date", "Status", "Type", "Items", "Total"})
	itemCount := 0
	for _, o := range orders {
		itemCount += o.ItemCount()
		t.AppendRow(table.Row{o.OrderNumber, o.OrderDate, o.Status, o.OrderType.Display(), o.ItemCount(), o.Total})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d orders", len(orders)), "", "", "", itemCount, ""})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var exportCmd = &cobra.Command{
	Use:   "export [--items] [--exact-prices] [--all-pages] [--days <n|all>] [--type <all|online|store>]",
	Short: "Exports the order history of the configured session to a CSV file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := exportOptions()
		if err != nil {
			return fmt.Errorf("invalid export options: %w", err)
		}
		cfg, err := loadConfig(*configName)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		tel := telemetry.SlogAPI{}
		client, err := cfg.newClient(tel)
		if err != nil {
			return fmt.Errorf("create retailer client: %w", err)
		}

		orchCfg, err := cfg.orchestratorConfig(nil, printProgress(os.Stderr))
		if err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		orch := export.New(export.RetailerSource{Client: client}, chrono.NewStandardImpl(), tel, orchCfg)
		result, err := orch.Run(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}

		path, err := relay.DirSaver{Dir: cfg.OutputDir}.Save(result.Filename, []byte(result.CSV))
		if err != nil {
			return fmt.Errorf("save csv: %w", err)
		}

		if !*exportQuiet {
			renderOrders(os.Stdout, result.Orders)
		}
		fmt.Fprintf(os.Stdout, "wrote %d orders (%d items) over %d page(s) to %s in %s\n",
			result.OrderCount, result.ItemCount, result.Pages, path, result.Duration.Round(time.Millisecond))
		return nil
	},
}
