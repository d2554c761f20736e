package commands

import (
	"fmt"
	"orderexport/internal/export"
	"orderexport/internal/metrics"
	"orderexport/internal/relay"
	"orderexport/internal/telemetry"
	"orderexport/lib/chrono"
	"orderexport/lib/serviceutil"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

var serveListen *string

func init() {
	serveListen = serveCmd.Flags().String("listen", "", "The address to listen on, overrides the config.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--listen <addr>]",
	Short: "Serves the export control messages and progress events over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(*configName)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if *serveListen != "" {
			cfg.Listen = *serveListen
		}

		tel := telemetry.SlogAPI{}
		client, err := cfg.newClient(tel)
		if err != nil {
			return fmt.Errorf("create retailer client: %w", err)
		}

		// validated once up front, every run rebuilds it with its own progress hook
		_, err = cfg.orchestratorConfig(nil, nil)
		if err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		reg := metrics.NewRegistry()
		broker := relay.NewBroker(64)
		source := export.RetailerSource{Client: client}
		factory := func(onProgress func(export.Progress)) *export.Orchestrator {
			orchCfg, _ := cfg.orchestratorConfig(reg, onProgress)
			return export.New(source, chrono.NewStandardImpl(), tel, orchCfg)
		}
		ctrl := relay.NewController(factory, broker, relay.DirSaver{Dir: cfg.OutputDir}, tel)
		handler := relay.NewHandler(ctrl, broker, reg.Handler())

		r := chi.NewRouter()
		r.Mount("/", handler.Routes())

		err = serviceutil.StartHttpServer(cmd.Context(), cfg.Listen, r)
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	},
}
