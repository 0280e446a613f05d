// Command replaydl downloads a single URL through the same resty client
// configuration the crawler's auth/collect phases would use (Cloudflare
// bypass transport, instrumented request/response logging) and writes the
// raw response body to disk. It exists so a fixture for pipelinetest, or a
// page to feed back into the extractor logic offline, can be captured
// without driving a real browser.
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"catalogcrawler/lib/configutil"
	"catalogcrawler/lib/restyutil"
	"catalogcrawler/lib/serviceutil"
	"catalogcrawler/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

// Config is the optional config.json5 replaydl reads for headers that
// shouldn't live on the command line (cookies, auth tokens).
type Config struct {
	Headers map[string]string `json:"headers"`
}

func main() {
	url := flag.String("url", "", "URL to download.")
	out := flag.String("out", "", "File to write the response body to.")
	debug := flag.Bool("debug", false, "Log each request/response to stderr.")
	flag.Parse()

	telemetry.InitSlog(*debug)

	if *url == "" || *out == "" {
		serviceutil.Fatal("invalid arguments", errMissingFlags)
	}

	cfg, err := configutil.ReadConfig[Config]("replaydl.config.json5")
	if err != nil && err != os.ErrNotExist {
		serviceutil.Fatal("failed to read config", err)
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(30 * time.Second)
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}
	restyutil.InstrumentClient(client, nil, restyutil.NewFilesystemOutput("<dev_state>/replaydl"), "replaydl")

	res, err := client.R().Get(*url)
	if err != nil {
		serviceutil.Fatal("request failed", err)
	}
	if res.IsError() {
		slog.Warn("non-2xx response", "status", res.StatusCode(), "url", *url)
	}

	if err := os.WriteFile(*out, res.Body(), 0o644); err != nil {
		serviceutil.Fatal("failed to write output", err)
	}
	slog.Info("wrote response body", "url", *url, "bytes", len(res.Body()), "out", *out)
}

var errMissingFlags = flagError("replaydl: both -url and -out are required")

type flagError string

func (e flagError) Error() string { return string(e) }
