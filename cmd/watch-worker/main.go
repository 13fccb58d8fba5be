package main

import (
	"log/slog"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("watch-worker"),
		kong.Description("Scheduled availability sweeps and monthly reports."),
	)
	ctx.FatalIfErrorf(ctx.Run(&Global{factories: defaultWorkerFactories()}, &cli))
}
