package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
)

type CLI struct {
	Run     RunCmd     `cmd:"" help:"Run the live attitude loop from a YAML config."`
	Dump    DumpCmd    `cmd:"" help:"Feed a sample log through a fresh estimator and print its outputs."`
	Summary SummaryCmd `cmd:"" help:"Print statistics for a sample log."`
}

// Flag defaults can be overridden from these files; flags still win.
var cliConfigPaths = []string{
	"/etc/tiltmatrix/cli.yaml",
	"~/.config/tiltmatrix/cli.yaml",
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("tiltmatrix"),
		kong.Description("Accelerometer tilt estimator with GDL90 attitude output"),
		kong.UsageOnError(),
		kong.Configuration(kongyaml.Loader, cliConfigPaths...),
	)
	ctx.BindTo(os.Stdout, (*io.Writer)(nil))
	ctx.FatalIfErrorf(ctx.Run())
}
