package shuffle

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/lox/pokerfloor/poker"
)

// UniformityReport tallies how often each card landed in each position.
type UniformityReport struct {
	Variant  poker.Variant
	Shuffles int
	// Counts[card][position], cards in canonical order.
	Counts [][]int

	ChiSquare float64
	// DegreesOfFreedom is (n-1)^2 for an n-card deck.
	DegreesOfFreedom int
	// MaxDeviation is the largest relative gap between an observed cell and
	// its expected count.
	MaxDeviation float64
	Rejections   int
}

// ZScore expresses the chi-square statistic in standard deviations above
// its expected value, using the normal approximation.
func (r UniformityReport) ZScore() float64 {
	df := float64(r.DegreesOfFreedom)
	if df == 0 {
		return 0
	}
	return (r.ChiSquare - df) / math.Sqrt(2*df)
}

// MeasureUniformity performs n shuffles across workers goroutines and
// computes the position-frequency chi-square statistic.
func MeasureUniformity(ctx context.Context, s *Shuffler, v poker.Variant, n, workers int) (UniformityReport, error) {
	ordered := poker.OrderedCards(v)
	size := len(ordered)
	index := make(map[poker.Card]int, size)
	for i, c := range ordered {
		index[c] = i
	}
	workers = max(workers, 1)

	partials := make([][][]int, workers)
	rejections := make([]int, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		quota := n / workers
		if w < n%workers {
			quota++
		}
		g.Go(func() error {
			counts := newGrid(size)
			deck := make([]poker.Card, size)
			for i := 0; i < quota; i++ {
				if i%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				copy(deck, ordered)
				res, err := s.Permute(deck)
				if err != nil {
					return err
				}
				rejections[w] += res.Rejections
				for pos, c := range deck {
					counts[index[c]][pos]++
				}
			}
			partials[w] = counts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return UniformityReport{}, err
	}

	report := UniformityReport{
		Variant:          v,
		Shuffles:         n,
		Counts:           newGrid(size),
		DegreesOfFreedom: (size - 1) * (size - 1),
	}
	for w, grid := range partials {
		report.Rejections += rejections[w]
		for c := range grid {
			for p := range grid[c] {
				report.Counts[c][p] += grid[c][p]
			}
		}
	}
	expected := float64(n) / float64(size)
	if expected == 0 {
		return report, nil
	}
	for c := range report.Counts {
		for _, observed := range report.Counts[c] {
			d := float64(observed) - expected
			report.ChiSquare += d * d / expected
			report.MaxDeviation = max(report.MaxDeviation, math.Abs(d)/expected)
		}
	}
	return report, nil
}

func newGrid(n int) [][]int {
	grid := make([][]int, n)
	for i := range grid {
		grid[i] = make([]int, n)
	}
	return grid
}
