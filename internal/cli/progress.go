package cli

import (
	"fmt"
	"time"

	"github.com/cortex-search/cortex/internal/indexer"
	"github.com/schollz/progressbar/v3"
)

// cliProgressReporter renders indexer.Progress callbacks as a single
// progress bar, re-scaled whenever the phase changes. Grounded on the
// teacher's CLIProgressReporter (internal/cli/progress.go), collapsed
// from the teacher's separate discovery/file/embedding/graph bars onto
// the new indexer's single preparing/processing phase split.
type cliProgressReporter struct {
	quiet     bool
	bar       *progressbar.ProgressBar
	phase     string
	startTime time.Time
}

// newCLIProgressReporter creates a reporter; quiet suppresses all output.
func newCLIProgressReporter(quiet bool) *cliProgressReporter {
	return &cliProgressReporter{quiet: quiet, startTime: time.Now()}
}

// onProgress adapts indexer.ProgressFunc.
func (c *cliProgressReporter) onProgress(p indexer.Progress) {
	if c.quiet {
		return
	}

	if p.Phase != c.phase {
		if c.bar != nil {
			c.bar.Finish()
			fmt.Println()
		}
		c.phase = p.Phase
		c.bar = progressbar.NewOptions(p.Total,
			progressbar.OptionSetDescription(describePhase(p.Phase)),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowElapsedTimeOnFinish(),
		)
	}

	if c.bar != nil {
		c.bar.Set(p.Current)
	}
}

func describePhase(phase string) string {
	switch phase {
	case "preparing":
		return "Preparing collection"
	case "processing":
		return "Indexing files"
	default:
		return phase
	}
}

// onComplete prints a final summary line.
func (c *cliProgressReporter) onComplete(stats indexer.Stats) {
	if c.quiet {
		return
	}
	if c.bar != nil {
		c.bar.Finish()
		fmt.Println()
	}
	fmt.Printf("Indexed %s chunks across %s files in %.1fs (%s)\n",
		formatNumber(stats.ChunksIndexed), formatNumber(stats.FilesProcessed),
		time.Since(c.startTime).Seconds(), stats.Status)
}

func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
