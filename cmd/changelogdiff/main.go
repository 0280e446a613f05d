// Command changelogdiff fetches a changelog page from -url and prints the
// lines that were added or removed since a previously saved snapshot
// (-prev); -save stores this fetch for the next run. It shares
// lib/restyutil and lib/telemetry with the rest of the tree but, like
// cmd/replaydl, never
// touches the pipeline package — it is one of the single-purpose side
// tools named as out of core scope.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"catalogcrawler/lib/restyutil"
	"catalogcrawler/lib/serviceutil"
	"catalogcrawler/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

func main() {
	url := flag.String("url", "", "Changelog URL to fetch.")
	prev := flag.String("prev", "", "Path to a previously-saved snapshot to diff against.")
	save := flag.String("save", "", "Path to save this fetch's body to, for the next run's -prev.")
	debug := flag.Bool("debug", false, "Log the request/response to stderr.")
	flag.Parse()

	telemetry.InitSlog(*debug)

	if *url == "" {
		serviceutil.Fatal("invalid arguments", errMissingURL)
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetTimeout(30 * time.Second)
	restyutil.InstrumentClient(client, nil, restyutil.NewFilesystemOutput("<dev_state>/changelogdiff"), "changelogdiff")

	res, err := client.R().Get(*url)
	if err != nil {
		serviceutil.Fatal("request failed", err)
	}
	current := string(res.Body())

	var previous string
	if *prev != "" {
		data, err := os.ReadFile(*prev)
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to read previous snapshot", err)
		}
		previous = string(data)
	}

	added, removed := diffLines(previous, current)
	for _, line := range removed {
		fmt.Printf("- %s\n", line)
	}
	for _, line := range added {
		fmt.Printf("+ %s\n", line)
	}

	if *save != "" {
		if err := os.WriteFile(*save, []byte(current), 0o644); err != nil {
			serviceutil.Fatal("failed to save snapshot", err)
		}
	}
}

// diffLines reports lines present in next but not prev (added) and lines
// present in prev but not next (removed). It is a set difference, not a
// positional diff: changelog entries are appended, rarely reordered, so a
// line-set comparison is enough to surface new/retracted entries without
// pulling in a dedicated diff library.
func diffLines(prev, next string) (added, removed []string) {
	prevSet := lineSet(prev)
	nextSet := lineSet(next)

	for _, line := range splitNonEmpty(next) {
		if _, ok := prevSet[line]; !ok {
			added = append(added, line)
		}
	}
	for _, line := range splitNonEmpty(prev) {
		if _, ok := nextSet[line]; !ok {
			removed = append(removed, line)
		}
	}
	return added, removed
}

func lineSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, line := range splitNonEmpty(s) {
		out[line] = struct{}{}
	}
	return out
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var errMissingURL = flagError("changelogdiff: -url is required")

type flagError string

func (e flagError) Error() string { return string(e) }
