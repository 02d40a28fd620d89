package main

import (
	"context"
	"log/slog"
	"time"

	"harvest-backend/lib/restyutil"
	"harvest-backend/lib/serviceutil"
	"harvest-backend/lib/telemetry"
)

// InitTelemetry sets up logging and exporters, it returns the resty dump
// output which is only set when verbose.
func InitTelemetry(ctx context.Context, verbose bool) restyutil.InstrumentOutput {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	tel, err := telemetry.SetupFromEnv(ctx, "harvest-server")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		err := tel.Shutdown(context.Background())
		if err != nil {
			slog.Warn("shutdown telemetry", "err", err)
		}
	}()
	telemetry.InstrumentPerfStats(ctx, time.Second*15)

	if !verbose {
		return nil
	}
	output, err := restyutil.NewFilesystemOutput("<dev_state>/resty/harvest-server")
	if err != nil {
		slog.WarnContext(ctx, "failed to create resty output", "err", err)
		return nil
	}
	return output
}
