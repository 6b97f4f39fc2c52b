// Package diff computes overall and per-file coverage deltas between two
// parsed coverage documents.
package diff

import (
	"math"
	"path"
	"sort"

	"github.com/everstacklabs/coverwatch/internal/cobertura"
	"github.com/everstacklabs/coverwatch/internal/omit"
	"github.com/everstacklabs/coverwatch/internal/pathnorm"
)

// changeEpsilon filters floating-point noise out of the per-file table.
const changeEpsilon = 0.01

// sourceExtensions limits the uncovered-changed-files pass to files that can
// plausibly carry coverage data.
var sourceExtensions = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".go": true, ".h": true,
	".java": true, ".js": true, ".jsx": true, ".kt": true, ".py": true,
	".pyx": true, ".rb": true, ".ts": true, ".tsx": true,
}

// Options controls diff computation.
type Options struct {
	// MinCoverage is the head-coverage floor, in percent. Dropping below it
	// marks the coverage row negative-trend and sets Result.BelowMinimum.
	MinCoverage float64
	// Omit suppresses matching paths from the uncovered-files list. Nil
	// omits nothing. It does not remove files from the per-file table.
	Omit *omit.Config
}

// ChangedFile is one entry from the pull request's changed-file listing.
type ChangedFile struct {
	Filename string
	Status   string
}

// Compute diffs a head coverage document against a base document and runs
// the uncovered pass over the PR's changed files. Both documents must
// already be path-normalized.
func Compute(base, head *cobertura.Document, changed []ChangedFile, opts Options) *Result {
	baseFiles := statsByPath(base)
	headFiles := statsByPath(head)

	res := &Result{
		Overall: computeOverall(base.Stats(), head.Stats(), opts.MinCoverage),
	}
	res.BelowMinimum = res.Overall.Head.Percent < opts.MinCoverage

	for _, p := range unionPaths(base, head) {
		bs, inBase := baseFiles[p]
		hs, inHead := headFiles[p]

		fd := FileDelta{Filename: p, IsNew: !inBase}
		if inBase {
			fd.Base = bs.Percent
		}
		if inHead {
			fd.Head = hs.Percent
			fd.MissingLines = CompressRanges(hs.MissingLines)
		}
		fd.Change = fd.Head - fd.Base

		if math.Abs(fd.Change) <= changeEpsilon && !fd.IsNew {
			continue
		}

		fd.Trend = TrendUp
		if fd.Change < 0 || fd.Head < opts.MinCoverage {
			fd.Trend = TrendDown
		}
		res.Files = append(res.Files, fd)
	}

	sort.SliceStable(res.Files, func(i, j int) bool {
		return math.Abs(res.Files[i].Change) > math.Abs(res.Files[j].Change)
	})

	res.Uncovered = uncoveredFiles(changed, baseFiles, headFiles, opts.Omit)
	return res
}

func statsByPath(doc *cobertura.Document) map[string]cobertura.FileStats {
	m := make(map[string]cobertura.FileStats, len(doc.Files))
	for i := range doc.Files {
		m[doc.Files[i].Path] = doc.Files[i].Stats()
	}
	return m
}

// unionPaths returns base paths in document order followed by head-only
// paths, preserving a stable order for tie-breaking.
func unionPaths(base, head *cobertura.Document) []string {
	seen := make(map[string]bool, len(base.Files)+len(head.Files))
	var paths []string
	for _, fc := range base.Files {
		if !seen[fc.Path] {
			seen[fc.Path] = true
			paths = append(paths, fc.Path)
		}
	}
	for _, fc := range head.Files {
		if !seen[fc.Path] {
			seen[fc.Path] = true
			paths = append(paths, fc.Path)
		}
	}
	return paths
}

func computeOverall(base, head cobertura.OverallStats, minCoverage float64) OverallDelta {
	od := OverallDelta{
		Base:     base,
		Head:     head,
		Files:    head.TotalFiles - base.TotalFiles,
		Lines:    head.TotalLines - base.TotalLines,
		Branches: head.BranchesValid - base.BranchesValid,
		Hits:     head.CoveredLines - base.CoveredLines,
		Misses:   head.Misses - base.Misses,
		Partials: head.Partials - base.Partials,
		Coverage: head.Percent - base.Percent,
	}

	od.CoverageTrend = TrendUp
	if od.Coverage < 0 || head.Percent < minCoverage {
		od.CoverageTrend = TrendDown
	}
	od.HitsTrend = TrendNeutral
	if head.CoveredLines > base.CoveredLines {
		od.HitsTrend = TrendUp
	}
	od.MissesTrend = inverseTrend(base.Misses, head.Misses)
	od.PartialsTrend = inverseTrend(base.Partials, head.Partials)
	return od
}

// inverseTrend classifies metrics where growth is bad (misses, partials).
func inverseTrend(base, head int) Trend {
	switch {
	case head > base:
		return TrendDown
	case head < base:
		return TrendUp
	default:
		return TrendNeutral
	}
}

// uncoveredFiles lists PR-changed source files that appear in neither
// coverage document and are not omitted.
func uncoveredFiles(changed []ChangedFile, baseFiles, headFiles map[string]cobertura.FileStats, cfg *omit.Config) []string {
	var uncovered []string
	for _, cf := range changed {
		if cf.Status == "removed" || !sourceExtensions[path.Ext(cf.Filename)] {
			continue
		}
		p := pathnorm.Normalize(cf.Filename)
		if cfg != nil && cfg.Omitted(p) {
			continue
		}
		if _, ok := baseFiles[p]; ok {
			continue
		}
		if _, ok := headFiles[p]; ok {
			continue
		}
		uncovered = append(uncovered, p)
	}
	return uncovered
}
