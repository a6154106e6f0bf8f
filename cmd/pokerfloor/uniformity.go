package main

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/lox/pokerfloor/internal/shuffle"
	"github.com/lox/pokerfloor/poker"
)

// UniformityCmd shuffles many decks and checks how evenly cards land in
// each position.
type UniformityCmd struct {
	Variant  string  `default:"holdem" help:"Deck to shuffle (holdem, shortdeck, omaha, ...)"`
	Shuffles int     `short:"n" default:"1000000" help:"Number of shuffles"`
	Workers  int     `help:"Parallel workers (0 = number of CPUs)"`
	Passes   int     `default:"2" help:"Fisher-Yates passes per shuffle"`
	MaxZ     float64 `default:"4" help:"Fail when the chi-square z-score exceeds this"`
}

func (c *UniformityCmd) Run(g *Globals) error {
	logger := g.logger()
	ctx, cancel := signalContext(logger)
	defer cancel()

	v, err := poker.ParseVariant(c.Variant)
	if err != nil {
		return err
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	s := shuffle.New(shuffle.WithPasses(c.Passes), shuffle.WithLogger(logger))
	logger.Info().Str("variant", v.String()).Int("shuffles", c.Shuffles).Int("workers", workers).Msg("Measuring uniformity")
	start := time.Now()
	report, err := shuffle.MeasureUniformity(ctx, s, v, c.Shuffles, workers)
	if err != nil {
		return err
	}
	fmt.Print(renderUniformity(report, time.Since(start), c.MaxZ))
	if z := report.ZScore(); z > c.MaxZ {
		return fmt.Errorf("chi-square z-score %.2f exceeds %.2f", z, c.MaxZ)
	}
	return nil
}

func renderUniformity(r shuffle.UniformityReport, elapsed time.Duration, maxZ float64) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Shuffle uniformity: %s", r.Variant)))
	b.WriteString("\n")
	row := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-16s", label)), value)
	}
	row("shuffles", fmt.Sprintf("%d in %s", r.Shuffles, elapsed.Round(time.Millisecond)))
	row("chi-square", fmt.Sprintf("%.1f (df %d)", r.ChiSquare, r.DegreesOfFreedom))
	row("max deviation", fmt.Sprintf("%.2f%%", r.MaxDeviation*100))
	row("rejections", fmt.Sprint(r.Rejections))

	z := fmt.Sprintf("%.2f", r.ZScore())
	if r.ZScore() > maxZ {
		z = badStyle.Render(z + " FAIL")
	} else {
		z = goodStyle.Render(z + " ok")
	}
	row("z-score", z)
	return b.String()
}
