package main

import (
	"context"

	"catalogcrawler/cmd/crawler/commands"
	"catalogcrawler/lib/telemetry"
)

func main() {
	telemetry.InitSlog(false)
	commands.ExecuteContext(context.Background())
}
