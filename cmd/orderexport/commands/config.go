package commands

import (
	"fmt"
	"log/slog"
	"orderexport/internal/export"
	"orderexport/internal/metrics"
	"orderexport/internal/scrapers/retailer"
	"orderexport/internal/telemetry"
	"orderexport/lib/chrono"
	"orderexport/lib/configutil"
	"orderexport/lib/restyutil"
	"orderexport/lib/timezone"
	"os"
	"time"
)

const cookieEnv = "ORDEREXPORT_COOKIE"

type Config struct {
	BaseUrl   string `json:"base_url"`
	Cookie    string `json:"cookie"`
	UserAgent string `json:"user_agent"`

	FilenamePrefix string `json:"filename_prefix"`
	OutputDir      string `json:"output_dir"`

	ListPath           string   `json:"list_path"`
	DetailPath         string   `json:"detail_path"`
	ApiPaths           []string `json:"api_paths"`
	StorePurchaseParam string   `json:"store_purchase_param"`

	DetailDelayMs       int     `json:"detail_delay_ms"`
	PageDelayMs         int     `json:"page_delay_ms"`
	PageSettleTimeoutMs int     `json:"page_settle_timeout_ms"`
	RequestsPerSecond   float64 `json:"requests_per_second"`

	// Timezone order dates are read in, the machine's zone when empty.
	Timezone string `json:"timezone"`

	HttpDumpDir string `json:"http_dump_dir"`
	Listen      string `json:"listen"`
}

var defaultConfig = Config{
	BaseUrl:        "https://www.walmart.com",
	FilenamePrefix: "walmart",
	OutputDir:      ".",
	ListPath:       "/orders",
	DetailPath:     "/orders/{id}",
	ApiPaths: []string{
		"/orchestra/orders/api/v1/orders/{id}",
		"/api/orders/{id}",
		"/account/api/orders/{id}",
	},
	StorePurchaseParam:  "storePurchase",
	DetailDelayMs:       500,
	PageDelayMs:         2000,
	PageSettleTimeoutMs: 10000,
	RequestsPerSecond:   2,
	Listen:              "127.0.0.1:8787",
}

// loadConfig resolves the config file (if any), fills in defaults and applies the
// environment.
func loadConfig(name string) (Config, error) {
	cfg, err := configutil.ReadRecursively[Config](name)
	if os.IsNotExist(err) {
		slog.Debug("no config file found, using defaults", "name", name)
		err = nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err = configutil.WithDefaults(cfg, defaultConfig)
	if err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}
	if cookie, ok := os.LookupEnv(cookieEnv); ok && cookie != "" {
		cfg.Cookie = cookie
	}
	if *dumpHttp != "" {
		cfg.HttpDumpDir = *dumpHttp
	}
	return cfg, nil
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func (c Config) newClient(tel telemetry.API) (*retailer.Client, error) {
	if c.Cookie == "" {
		slog.Warn("no session cookie configured, the retailer will most likely show its sign in page", "env", cookieEnv)
	}

	var dump restyutil.InstrumentOutput
	if c.HttpDumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(c.HttpDumpDir)
		if err != nil {
			return nil, fmt.Errorf("http dump dir: %w", err)
		}
		dump = out
	}

	return retailer.NewClient(retailer.Config{
		BaseUrl:            c.BaseUrl,
		Cookie:             c.Cookie,
		UserAgent:          c.UserAgent,
		ListPath:           c.ListPath,
		DetailPath:         c.DetailPath,
		ApiPaths:           c.ApiPaths,
		StorePurchaseParam: c.StorePurchaseParam,
		RequestsPerSecond:  c.RequestsPerSecond,
		PageSettleTimeout:  millis(c.PageSettleTimeoutMs),
		Dump:               dump,
	}, chrono.NewStandardImpl(), tel)
}

func (c Config) orchestratorConfig(reg *metrics.Registry, onProgress func(export.Progress)) (export.Config, error) {
	loc, err := timezone.Load(c.Timezone)
	if err != nil {
		return export.Config{}, err
	}
	return export.Config{
		DetailDelay:    millis(c.DetailDelayMs),
		PageDelay:      millis(c.PageDelayMs),
		FilenamePrefix: c.FilenamePrefix,
		Location:       loc,
		OnProgress:     onProgress,
		Metrics:        reg,
	}, nil
}
