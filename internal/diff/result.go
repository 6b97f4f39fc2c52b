package diff

import (
	"fmt"
	"strings"

	"github.com/everstacklabs/coverwatch/internal/cobertura"
)

// Trend is the directional annotation attached to a metric row.
type Trend int

const (
	TrendNeutral Trend = iota
	TrendUp
	TrendDown
)

// Marker returns the row prefix used in rendered reports.
func (t Trend) Marker() string {
	switch t {
	case TrendUp:
		return "+"
	case TrendDown:
		return "-"
	default:
		return " "
	}
}

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	default:
		return "neutral"
	}
}

// MarshalYAML renders trends as their string names in machine output.
func (t Trend) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// FileDelta is the per-file coverage change between base and head.
type FileDelta struct {
	Filename     string  `yaml:"filename"`
	Base         float64 `yaml:"base"` // percent; meaningless when IsNew
	Head         float64 `yaml:"head"`
	Change       float64 `yaml:"change"`
	IsNew        bool    `yaml:"is_new"`
	MissingLines string  `yaml:"missing_lines,omitempty"`
	Trend        Trend   `yaml:"trend"`
}

// OverallDelta holds the head−base deltas of every summed metric together
// with both absolute snapshots for rendering.
type OverallDelta struct {
	Base cobertura.OverallStats `yaml:"base"`
	Head cobertura.OverallStats `yaml:"head"`

	Files    int     `yaml:"files"`
	Lines    int     `yaml:"lines"`
	Branches int     `yaml:"branches"`
	Hits     int     `yaml:"hits"`
	Misses   int     `yaml:"misses"`
	Partials int     `yaml:"partials"`
	Coverage float64 `yaml:"coverage"` // percentage points

	CoverageTrend Trend `yaml:"coverage_trend"`
	HitsTrend     Trend `yaml:"hits_trend"`
	MissesTrend   Trend `yaml:"misses_trend"`
	PartialsTrend Trend `yaml:"partials_trend"`
}

// Result is the full outcome of one diff computation.
type Result struct {
	Overall OverallDelta `yaml:"overall"`
	// Files is sorted by descending absolute change, stable on the original
	// base-then-head document order.
	Files []FileDelta `yaml:"files,omitempty"`
	// Uncovered lists normalized PR-changed source files with no coverage
	// data on either branch.
	Uncovered []string `yaml:"uncovered,omitempty"`
	// BelowMinimum is set when head coverage sits under the configured
	// floor. Reportable to the caller, never an error here.
	BelowMinimum bool `yaml:"below_minimum"`
}

// HasChanges reports whether any file moved or lost its coverage data.
func (r *Result) HasChanges() bool {
	return len(r.Files) > 0 || len(r.Uncovered) > 0
}

// CompressRanges renders a sorted list of missing line numbers as maximal
// runs: a lone line as "N", a run as "N-M", runs joined by ", ".
func CompressRanges(lines []int) string {
	if len(lines) == 0 {
		return ""
	}

	var parts []string
	start, prev := lines[0], lines[0]
	flush := func() {
		if start == prev {
			parts = append(parts, fmt.Sprintf("%d", start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, n := range lines[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		flush()
		start, prev = n, n
	}
	flush()
	return strings.Join(parts, ", ")
}
