package main

import (
	"context"
	"log/slog"
	"orderexport/cmd/orderexport/commands"
	"orderexport/lib/serviceutil"
	"orderexport/lib/telemetry"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "orderexport")
	if err != nil {
		slog.Debug("telemetry disabled", "err", err)
	}

	err = commands.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if shutdownErr := tel.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Warn("failed to flush telemetry", "err", shutdownErr)
	}
	cancel()

	if err != nil {
		serviceutil.Fatal("orderexport failed", err)
	}
}
