package cobertura

import "sort"

// Dialect identifies which of the two supported coverage XML layouts a
// document was parsed from. It is fixed once at parse time.
type Dialect int

const (
	// DialectPackaged is the packages → package → classes nesting produced
	// by JVM and JS tooling.
	DialectPackaged Dialect = iota
	// DialectFlat is the classes-at-root nesting with no packages level.
	DialectFlat
)

func (d Dialect) String() string {
	if d == DialectFlat {
		return "flat"
	}
	return "packaged"
}

// Document is a parsed coverage report flattened to one entry per class.
type Document struct {
	Dialect         Dialect
	LineRate        float64
	BranchRate      float64
	BranchesValid   int
	BranchesCovered int
	Files           []FileCoverage
}

// FileCoverage holds the line records for a single source file.
type FileCoverage struct {
	Path  string
	Lines []Line // sorted by Number
}

// Line is one executable line record.
type Line struct {
	Number  int
	Hits    int
	Branch  bool
	Partial bool // condition-coverage N/M with 0 < N < M
}

// FileStats is the derived per-file coverage summary.
type FileStats struct {
	Path         string
	TotalLines   int
	CoveredLines int
	Misses       int
	Partials     int
	MissingLines []int // ascending
	Percent      float64
}

// OverallStats aggregates FileStats across a whole document.
type OverallStats struct {
	TotalFiles      int     `yaml:"total_files"`
	TotalLines      int     `yaml:"total_lines"`
	CoveredLines    int     `yaml:"covered_lines"`
	Misses          int     `yaml:"misses"`
	Partials        int     `yaml:"partials"`
	BranchesValid   int     `yaml:"branches_valid"`
	BranchesCovered int     `yaml:"branches_covered"`
	Percent         float64 `yaml:"percent"`
}

// Stats computes the per-file summary for one file entry.
// Percent is defined as 0 for a file with no line records.
func (fc *FileCoverage) Stats() FileStats {
	st := FileStats{Path: fc.Path, TotalLines: len(fc.Lines)}
	for _, ln := range fc.Lines {
		if ln.Hits > 0 {
			st.CoveredLines++
		} else {
			st.MissingLines = append(st.MissingLines, ln.Number)
		}
		if ln.Partial {
			st.Partials++
		}
	}
	st.Misses = st.TotalLines - st.CoveredLines
	sort.Ints(st.MissingLines)
	if st.TotalLines > 0 {
		st.Percent = float64(st.CoveredLines) / float64(st.TotalLines) * 100
	}
	return st
}

// Stats aggregates coverage across every file in the document.
// Percent comes from the root line-rate attribute when present, otherwise
// from the summed line counts.
func (d *Document) Stats() OverallStats {
	st := OverallStats{
		TotalFiles:      len(d.Files),
		BranchesValid:   d.BranchesValid,
		BranchesCovered: d.BranchesCovered,
	}
	for i := range d.Files {
		fs := d.Files[i].Stats()
		st.TotalLines += fs.TotalLines
		st.CoveredLines += fs.CoveredLines
		st.Misses += fs.Misses
		st.Partials += fs.Partials
	}
	if d.LineRate > 0 {
		st.Percent = d.LineRate * 100
	} else if st.TotalLines > 0 {
		st.Percent = float64(st.CoveredLines) / float64(st.TotalLines) * 100
	}
	return st
}

// ByPath returns the document's files keyed by path.
func (d *Document) ByPath() map[string]FileCoverage {
	m := make(map[string]FileCoverage, len(d.Files))
	for _, fc := range d.Files {
		m[fc.Path] = fc
	}
	return m
}
