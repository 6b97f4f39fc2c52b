package cobertura

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// ErrUnknownDialect is returned when the document is valid XML but carries
// neither a packages nor a classes element under the coverage root. Callers
// are expected to warn and continue with an empty file list.
var ErrUnknownDialect = errors.New("coverage document matches no known dialect")

type xmlCoverage struct {
	XMLName         xml.Name     `xml:"coverage"`
	LineRate        string       `xml:"line-rate,attr"`
	BranchRate      string       `xml:"branch-rate,attr"`
	BranchesValid   string       `xml:"branches-valid,attr"`
	BranchesCovered string       `xml:"branches-covered,attr"`
	Packages        *xmlPackages `xml:"packages"`
	Classes         *xmlClasses  `xml:"classes"`
}

type xmlPackages struct {
	Packages []xmlPackage `xml:"package"`
}

type xmlPackage struct {
	Classes xmlClasses `xml:"classes"`
}

type xmlClasses struct {
	Classes []xmlClass `xml:"class"`
}

type xmlClass struct {
	Filename string    `xml:"filename,attr"`
	Lines    *xmlLines `xml:"lines"`
}

type xmlLines struct {
	Lines []xmlLine `xml:"line"`
}

type xmlLine struct {
	Number            string `xml:"number,attr"`
	Hits              string `xml:"hits,attr"`
	Branch            string `xml:"branch,attr"`
	ConditionCoverage string `xml:"condition-coverage,attr"`
}

// conditionRE extracts the covered/total condition pair from values like
// "50% (1/2)" or a bare "1/2".
var conditionRE = regexp.MustCompile(`(\d+)/(\d+)`)

// Parse decodes a coverage XML document and flattens it to one FileCoverage
// per class. Malformed XML or non-numeric line attributes are fatal; a class
// without a lines element is skipped. A document with neither a packages nor
// a classes node returns an empty Document alongside ErrUnknownDialect.
func Parse(data []byte) (*Document, error) {
	var root xmlCoverage
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding coverage XML: %w", err)
	}

	doc := &Document{
		LineRate:        parseRate(root.LineRate),
		BranchRate:      parseRate(root.BranchRate),
		BranchesValid:   parseCount(root.BranchesValid),
		BranchesCovered: parseCount(root.BranchesCovered),
	}

	var classes []xmlClass
	switch {
	case root.Packages != nil:
		doc.Dialect = DialectPackaged
		for _, pkg := range root.Packages.Packages {
			classes = append(classes, pkg.Classes.Classes...)
		}
	case root.Classes != nil:
		doc.Dialect = DialectFlat
		classes = root.Classes.Classes
	default:
		return doc, ErrUnknownDialect
	}

	for _, cls := range classes {
		if cls.Lines == nil {
			continue
		}
		fc := FileCoverage{Path: cls.Filename}
		for _, ln := range cls.Lines.Lines {
			entry, err := parseLine(ln)
			if err != nil {
				return nil, fmt.Errorf("class %q: %w", cls.Filename, err)
			}
			fc.Lines = append(fc.Lines, entry)
		}
		sort.Slice(fc.Lines, func(i, j int) bool {
			return fc.Lines[i].Number < fc.Lines[j].Number
		})
		doc.Files = append(doc.Files, fc)
	}

	return doc, nil
}

func parseLine(ln xmlLine) (Line, error) {
	number, err := strconv.Atoi(ln.Number)
	if err != nil || number <= 0 {
		return Line{}, fmt.Errorf("invalid line number %q", ln.Number)
	}
	hits, err := strconv.Atoi(ln.Hits)
	if err != nil || hits < 0 {
		return Line{}, fmt.Errorf("line %d: invalid hits %q", number, ln.Hits)
	}

	entry := Line{Number: number, Hits: hits}
	if ln.Branch == "true" {
		entry.Branch = true
		if m := conditionRE.FindStringSubmatch(ln.ConditionCoverage); m != nil {
			covered, _ := strconv.Atoi(m[1])
			total, _ := strconv.Atoi(m[2])
			entry.Partial = covered > 0 && covered < total
		}
	}
	return entry, nil
}

// parseRate reads a 0..1 float attribute, defaulting to 0 when absent or
// unreadable. Rates are advisory; line records are the source of truth.
func parseRate(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseCount(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
