package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/kolkov/fieldhook/cmd/fieldhook/rewrite"
)

// reporter prints rewrite outcomes as the Transformer produces them.
// Failures are always printed; rewritten files only in verbose mode.
type reporter struct {
	mu      sync.Mutex
	out     io.Writer
	baseDir string
	verbose bool

	stats     rewrite.Stats
	rewritten int
	unchanged int
	failed    int
}

func newReporter(out io.Writer, baseDir string, verbose bool) *reporter {
	return &reporter{out: out, baseDir: baseDir, verbose: verbose}
}

// report is a rewrite.Listener. It may be called concurrently.
func (r *reporter) report(res *rewrite.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Add(res.Stats)
	name := r.relative(res.Filename)

	switch res.Status {
	case rewrite.StatusFailed:
		r.failed++
		fmt.Fprintf(r.out, "Error rewriting %s: %v\n", name, res.Failure())
	case rewrite.StatusRewritten:
		r.rewritten++
		if r.verbose {
			fmt.Fprintf(r.out, "Rewrote: %s\n", name)
			printStats(r.out, &res.Stats)
		}
	default:
		r.unchanged++
	}
}

func (r *reporter) relative(path string) string {
	if r.baseDir == "" {
		return path
	}
	if rel, err := filepath.Rel(r.baseDir, path); err == nil {
		return rel
	}
	return path
}

// printSummary prints the totals over every reported file.
func (r *reporter) printSummary() {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "%d files rewritten, %d unchanged, %d failed\n", r.rewritten, r.unchanged, r.failed)
	fmt.Fprintf(r.out, "Total: %d field writes, %d notifications inserted, %d skipped\n",
		r.stats.Total(), r.stats.WritesRewritten, r.stats.TotalSkipped())
}

// printStats prints the statistics of one file.
func printStats(out io.Writer, stats *rewrite.Stats) {
	fmt.Fprintf(out, "  - %d writes rewritten\n", stats.WritesRewritten)
	if stats.PrimitiveValues+stats.ReferenceValues > 0 {
		fmt.Fprintf(out, "  - %d primitive, %d reference values\n", stats.PrimitiveValues, stats.ReferenceValues)
	}
	if stats.TotalSkipped() > 0 {
		fmt.Fprintf(out, "  - %d writes skipped (%d reserved, %d functions, %d value receivers, %d complex owners, %d headers)\n",
			stats.TotalSkipped(),
			stats.ReservedSkipped,
			stats.FunctionSkipped,
			stats.ValueReceiverSkipped,
			stats.ComplexOwnerSkipped,
			stats.NoStmtListSkipped,
		)
	}
}
