package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"catalogcrawler/internal/pipeline"
	"catalogcrawler/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var reportSite *string

func init() {
	reportSite = reportCmd.Flags().String("site", "example", "The registered site to report on.")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report [--site <name>]",
	Short: "Renders meta.json and free.json for a registered site as tables.",
	Run: func(cmd *cobra.Command, args []string) {
		factory, ok := sites[*reportSite]
		if !ok {
			serviceutil.Fatal("unknown site", fmt.Errorf("no site registered as %q", *reportSite))
		}

		cfg := factory()
		paths := pipeline.PathsFor(cfg.Runtime, cfg.StartURL)

		var meta reportMeta
		if err := readJSON(paths.MetaFile, &meta); err != nil {
			serviceutil.Fatal("failed to read meta.json", err)
		}
		var free reportFree
		if err := readJSON(paths.FreeFile, &free); err != nil {
			serviceutil.Fatal("failed to read free.json", err)
		}

		renderSummaryTable(*reportSite, meta, free)
		if len(meta.CollectionLinks) > 0 {
			renderLinksTable(meta.CollectionLinks)
		}
	},
}

type reportMeta struct {
	RunID               string `json:"runId"`
	StartURL            string `json:"startUrl"`
	CollectionLinks     []struct {
		Link       string `json:"link"`
		Name       string `json:"name,omitempty"`
		BlockCount int    `json:"blockCount,omitempty"`
	} `json:"collectionLinks"`
	TotalLinksDisplayed int    `json:"totalLinksDisplayed"`
	TotalLinksActual    int    `json:"totalLinksActual"`
	TotalBlocksExpected int    `json:"totalBlocksExpected"`
	TotalBlocksActual   int    `json:"totalBlocksActual"`
	FreePagesTotal      int    `json:"freePagesTotal"`
	FreeBlocksTotal     int    `json:"freeBlocksTotal"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime,omitempty"`
	IsComplete          bool   `json:"isComplete"`
}

type reportFree struct {
	TotalPages  int `json:"totalPages"`
	TotalBlocks int `json:"totalBlocks"`
}

func readJSON(path string, dest any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func renderSummaryTable(site string, meta reportMeta, free reportFree) {
	t := newReportTable()
	t.AppendHeader(table.Row{"field", "value"})
	t.AppendRows([]table.Row{
		{"site", site},
		{"run id", meta.RunID},
		{"start url", meta.StartURL},
		{"started", meta.StartTime},
		{"finished", meta.EndTime},
		{"complete", meta.IsComplete},
		{"links displayed", meta.TotalLinksDisplayed},
		{"links actual", meta.TotalLinksActual},
		{"blocks expected", meta.TotalBlocksExpected},
		{"blocks actual", meta.TotalBlocksActual},
		{"free pages", free.TotalPages},
		{"free blocks", free.TotalBlocks},
	})
	t.Render()
}

func renderLinksTable(links []struct {
	Link       string `json:"link"`
	Name       string `json:"name,omitempty"`
	BlockCount int    `json:"blockCount,omitempty"`
}) {
	t := newReportTable()
	t.AppendHeader(table.Row{"link", "name", "block count"})
	for _, l := range links {
		t.AppendRow(table.Row{l.Link, l.Name, l.BlockCount})
	}
	t.Render()
}

func newReportTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
