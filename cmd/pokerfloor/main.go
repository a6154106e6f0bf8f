package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	Debug     bool   `help:"Enable debug logging"`
	LogFormat string `default:"console" enum:"console,json" help:"Log format (console|json)"`
}

type CLI struct {
	Globals

	Version    kong.VersionFlag `short:"v" help:"Show version"`
	Run        RunCmd           `cmd:"" help:"Play a simulated tournament between bots"`
	Replay     ReplayCmd        `cmd:"" help:"Verify recorded hand histories"`
	Uniformity UniformityCmd    `cmd:"" help:"Measure shuffle uniformity with a chi-square test"`
	Config     ConfigCmd        `cmd:"" help:"Work with tournament configuration files"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pokerfloor"),
		kong.Description("Multi-table poker tournament engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
