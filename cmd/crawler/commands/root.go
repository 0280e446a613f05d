package commands

import (
	"context"
	"fmt"
	"os"

	"catalogcrawler/lib/telemetry"

	tracesdk "go.opentelemetry.io/otel/sdk/trace"

	"github.com/spf13/cobra"
)

var traceFile *string

var rootCmd = &cobra.Command{
	Use:   "crawler",
	Short: "crawler runs declarative component-catalog site crawls.",
}

func init() {
	traceFile = rootCmd.PersistentFlags().String("trace", "", "Write a JSON-lines span trace to this file.")
}

// setupTracing installs the tracer provider named by --trace, if any, and
// returns a shutdown func to flush it before the process exits.
func setupTracing() (func(context.Context) error, error) {
	var exporter tracesdk.SpanExporter
	var f *os.File
	if *traceFile != "" {
		var err error
		f, err = os.Create(*traceFile)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		exporter = telemetry.NewFileSpanExporter(f)
	}
	shutdown, err := telemetry.Setup("catalogcrawler", exporter)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return nil, err
	}
	return func(ctx context.Context) error {
		defer func() {
			if f != nil {
				f.Close()
			}
		}()
		return shutdown(ctx)
	}, nil
}

func ExecuteContext(ctx context.Context) {
	shutdown, err := setupTracing()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer shutdown(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
