package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("catalogcrawler.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var memoryGauge, _ = meter.Int64Gauge("allocated_mb")
var liveObjectsGauge, _ = meter.Int64Gauge("live_objects")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")

// InstrumentPerfStats starts a resource monitor for the lifetime of ctx,
// recording gauges every 30s. site tags every recorded point so a run's
// resource usage can be told apart from a previous or concurrent crawl's in
// the same metrics backend.
func InstrumentPerfStats(ctx context.Context, site string) {
	go func() {
		attrs := metric.WithAttributes(attribute.String("site", site))
		var memStats runtime.MemStats
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)

				cpuUsage, err := cpu.Percent(time.Minute, false)
				if err == nil {
					cpuGauge.Record(ctx, cpuUsage[0], attrs)
				} else {
					slog.Warn("failed to read cpu usage", "site", site, "err", err)
				}

				memoryGauge.Record(ctx, int64(memStats.Alloc/1_000_000), attrs)
				liveObjectsGauge.Record(ctx, int64(memStats.Mallocs)-int64(memStats.Frees), attrs)
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()), attrs)
			case <-ctx.Done():
				return
			}
		}
	}()
}
