package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lox/pokerfloor/internal/config"
)

// ConfigCmd is the root command for configuration utilities.
type ConfigCmd struct {
	Validate ConfigValidateCmd `cmd:"" help:"Check a tournament file and print the resolved settings"`
}

type ConfigValidateCmd struct {
	File string `arg:"" name:"file" type:"existingfile" help:"Tournament configuration file"`
}

func (c *ConfigValidateCmd) Run(g *Globals) error {
	src, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	file, err := config.Parse(src, c.File)
	if err != nil {
		return err
	}
	return printConfig(os.Stdout, file)
}

func printConfig(w io.Writer, file *config.File) error {
	cfg, err := file.TournamentConfig()
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Tournament %s", cfg.ID)))
	b.WriteString(" " + goodStyle.Render("valid") + "\n")
	row := func(label string, value any) {
		fmt.Fprintf(&b, "  %s %v\n", labelStyle.Render(fmt.Sprintf("%-16s", label)), value)
	}
	row("variant", cfg.Variant)
	row("players", file.Tournament.Players)
	row("starting stack", cfg.StartingStack)
	row("seats per table", cfg.SeatsPerTable)
	row("action clock", cfg.ActionClock)
	row("time bank", cfg.TimeBank)
	if cfg.MandatedRuns > 1 {
		row("run it", fmt.Sprintf("%d times", cfg.MandatedRuns))
	} else if cfg.RunoutVote > 0 {
		row("runout vote", cfg.RunoutVote)
	}
	for i, l := range cfg.Levels {
		level := fmt.Sprintf("%d/%d", l.SmallBlind, l.BigBlind)
		if l.Ante > 0 {
			level += fmt.Sprintf(" ante %d", l.Ante)
		}
		row(fmt.Sprintf("level %d", i+1), level+dimStyle.Render(" for "+l.Duration.String()))
	}
	for _, bt := range file.Bots {
		row("bot "+bt.Name, fmt.Sprintf("%s x%d", bt.Strategy, bt.Count))
	}
	_, err = io.WriteString(w, b.String())
	return err
}
