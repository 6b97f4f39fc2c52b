// Package report serializes a diff result into the deterministic markdown
// block posted as a PR comment. Rendering is pure: no I/O, no clock.
package report

import (
	"fmt"
	"strings"

	"github.com/everstacklabs/coverwatch/internal/diff"
)

// Marker is the literal sentinel embedded in every rendered report. The
// comment publisher searches existing PR comments for it so the report is
// updated in place instead of duplicated.
const Marker = "<!-- coverwatch:coverage-report -->"

// Options are the two rendering knobs surfaced through configuration.
type Options struct {
	MinCoverage float64
	ShowMissing bool
}

// Render produces the full report for a computed diff.
func Render(res *diff.Result, baseBranch, headBranch string, opts Options) string {
	var b strings.Builder

	writeHeader(&b, baseBranch, headBranch)
	writeOverall(&b, res, baseBranch, headBranch)

	if len(res.Files) > 0 {
		writeFiles(&b, res, opts.ShowMissing)
	}
	if len(res.Uncovered) > 0 {
		writeUncovered(&b, res.Uncovered)
	}
	if res.BelowMinimum {
		fmt.Fprintf(&b, "\n:warning: Head coverage %.2f%% is below the required minimum of %.2f%%.\n",
			res.Overall.Head.Percent, opts.MinCoverage)
	}

	return b.String()
}

// RenderUnavailable produces the informational report used when one or both
// coverage documents could not be retrieved.
func RenderUnavailable(baseBranch, headBranch string, missing []string) string {
	var b strings.Builder
	writeHeader(&b, baseBranch, headBranch)
	for _, branch := range missing {
		fmt.Fprintf(&b, "No coverage report was found for `%s`.\n", branch)
	}
	b.WriteString("\nCoverage diff was skipped.\n")
	return b.String()
}

func writeHeader(b *strings.Builder, baseBranch, headBranch string) {
	b.WriteString(Marker)
	b.WriteString("\n")
	fmt.Fprintf(b, "### Coverage report: `%s` vs `%s`\n\n", baseBranch, headBranch)
}

func writeOverall(b *strings.Builder, res *diff.Result, baseBranch, headBranch string) {
	o := res.Overall
	rule := strings.Repeat("=", 46)

	b.WriteString("```diff\n")
	b.WriteString("@@              Coverage Diff              @@\n")
	fmt.Fprintf(b, "##  %14s %9s %12s  ##\n", truncate(baseBranch, 14), truncate(headBranch, 9), "+/-")
	b.WriteString(rule + "\n")
	writeRow(b, o.CoverageTrend, "Coverage",
		fmt.Sprintf("%.2f%%", o.Base.Percent),
		fmt.Sprintf("%.2f%%", o.Head.Percent),
		fmt.Sprintf("%+.2f%%", o.Coverage))
	b.WriteString(rule + "\n")
	writeRow(b, diff.TrendNeutral, "Files", itoa(o.Base.TotalFiles), itoa(o.Head.TotalFiles), delta(o.Files))
	writeRow(b, diff.TrendNeutral, "Lines", itoa(o.Base.TotalLines), itoa(o.Head.TotalLines), delta(o.Lines))
	writeRow(b, diff.TrendNeutral, "Branches", itoa(o.Base.BranchesValid), itoa(o.Head.BranchesValid), delta(o.Branches))
	b.WriteString(rule + "\n")
	writeRow(b, o.HitsTrend, "Hits", itoa(o.Base.CoveredLines), itoa(o.Head.CoveredLines), delta(o.Hits))
	writeRow(b, o.MissesTrend, "Misses", itoa(o.Base.Misses), itoa(o.Head.Misses), delta(o.Misses))
	writeRow(b, o.PartialsTrend, "Partials", itoa(o.Base.Partials), itoa(o.Head.Partials), delta(o.Partials))
	b.WriteString("```\n")
}

func writeRow(b *strings.Builder, t diff.Trend, label, base, head, change string) {
	fmt.Fprintf(b, "%s %-10s %9s %9s %12s\n", t.Marker(), label, base, head, change)
}

func writeFiles(b *strings.Builder, res *diff.Result, showMissing bool) {
	b.WriteString("\n```diff\n")
	b.WriteString("@@              Impacted Files             @@\n")
	for _, fd := range res.Files {
		baseCol := fmt.Sprintf("%.2f%%", fd.Base)
		if fd.IsNew {
			baseCol = "new"
		}
		fmt.Fprintf(b, "%s %-28s %8s -> %7s (%+.2f%%)\n",
			fd.Trend.Marker(), fd.Filename, baseCol, fmt.Sprintf("%.2f%%", fd.Head), fd.Change)
		if showMissing && fd.MissingLines != "" {
			fmt.Fprintf(b, "      Missing lines: %s\n", fd.MissingLines)
		}
	}
	b.WriteString("```\n")
}

func writeUncovered(b *strings.Builder, uncovered []string) {
	b.WriteString("\nChanged files with no coverage data:\n")
	for _, f := range uncovered {
		fmt.Fprintf(b, "- `%s`\n", f)
	}
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}

func delta(n int) string {
	if n == 0 {
		return "0"
	}
	return fmt.Sprintf("%+d", n)
}

// truncate shortens s to at most max runes. Cutting on runes rather than
// bytes keeps multibyte branch names valid UTF-8.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
