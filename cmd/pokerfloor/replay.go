package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lox/pokerfloor/internal/handhistory"
)

// ReplayCmd re-runs settlement for recorded hands and reports any that do
// not match what was written.
type ReplayCmd struct {
	Paths   []string `arg:"" name:"path" help:"hands.toml files or hand history directories"`
	Verbose bool     `short:"V" help:"Print every hand, not just failures"`
}

var errReplayFailed = errors.New("replay: hands failed verification")

func (c *ReplayCmd) Run(g *Globals) error {
	logger := g.logger()
	files, err := handFiles(c.Paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no hand history files under %s", strings.Join(c.Paths, ", "))
	}

	var total, failed int
	for _, path := range files {
		recs, err := handhistory.ReadFile(path)
		if err != nil {
			return err
		}
		logger.Debug().Str("file", path).Int("hands", len(recs)).Msg("Verifying hand history")
		n, err := replayFile(os.Stdout, path, recs, c.Verbose)
		total += len(recs)
		failed += n
		if err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("%d hands in %d files", total, len(files))
	if failed > 0 {
		fmt.Println(badStyle.Render(fmt.Sprintf("%s, %d failed", summary, failed)))
		return errReplayFailed
	}
	fmt.Println(goodStyle.Render(summary + ", all verified"))
	return nil
}

// replayFile writes one line per failing hand (or per hand when verbose)
// and returns the number of failures.
func replayFile(w io.Writer, path string, recs []handhistory.Record, verbose bool) (int, error) {
	if _, err := fmt.Fprintln(w, headerStyle.Render(path)); err != nil {
		return 0, err
	}
	failed := 0
	for _, rec := range recs {
		err := handhistory.Verify(rec)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(w, "  %s %s\n", badStyle.Render("FAIL"), err)
		case verbose:
			fmt.Fprintf(w, "  %s %s %s\n", goodStyle.Render("ok"), rec.HandID, dimStyle.Render(describe(rec)))
		}
	}
	return failed, nil
}

func describe(rec handhistory.Record) string {
	var parts []string
	for _, b := range rec.Boards {
		parts = append(parts, "["+strings.Join(b, " ")+"]")
	}
	won := 0
	for _, s := range rec.Seats {
		won += s.Won
	}
	parts = append(parts, fmt.Sprintf("%d chips", won))
	return strings.Join(parts, " ")
}

// handFiles expands directories into the hands.toml files the recorder
// writes below them.
func handFiles(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && d.Name() == "hands.toml" {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
