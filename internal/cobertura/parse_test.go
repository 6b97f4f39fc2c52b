package cobertura

import (
	"errors"
	"testing"
)

const packagedXML = `<?xml version="1.0"?>
<coverage line-rate="0.6666" branch-rate="0.5" branches-valid="4" branches-covered="2">
  <packages>
    <package name="app">
      <classes>
        <class filename="src/app/main.py">
          <lines>
            <line number="3" hits="5" branch="true" condition-coverage="50% (1/2)"/>
            <line number="1" hits="1"/>
            <line number="2" hits="0"/>
          </lines>
        </class>
        <class filename="src/app/generated.py"/>
      </classes>
    </package>
  </packages>
</coverage>`

const flatXML = `<?xml version="1.0"?>
<coverage line-rate="1.0">
  <classes>
    <class filename="lib/util.js">
      <lines>
        <line number="10" hits="2"/>
        <line number="11" hits="3" branch="true" condition-coverage="100% (2/2)"/>
      </lines>
    </class>
  </classes>
</coverage>`

func TestParsePackagedDialect(t *testing.T) {
	doc, err := Parse([]byte(packagedXML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if doc.Dialect != DialectPackaged {
		t.Errorf("expected packaged dialect, got %s", doc.Dialect)
	}
	// The class without a lines element is skipped, not an error.
	if len(doc.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(doc.Files))
	}

	fc := doc.Files[0]
	if fc.Path != "src/app/main.py" {
		t.Errorf("expected src/app/main.py, got %s", fc.Path)
	}
	if len(fc.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(fc.Lines))
	}
	// Lines come back sorted by number regardless of document order.
	for i, want := range []int{1, 2, 3} {
		if fc.Lines[i].Number != want {
			t.Errorf("line %d: expected number %d, got %d", i, want, fc.Lines[i].Number)
		}
	}

	if !fc.Lines[2].Branch || !fc.Lines[2].Partial {
		t.Error("expected line 3 to be a partial branch (1/2 conditions)")
	}
	if doc.BranchesValid != 4 || doc.BranchesCovered != 2 {
		t.Errorf("expected branches 2/4, got %d/%d", doc.BranchesCovered, doc.BranchesValid)
	}
}

func TestParseFlatDialect(t *testing.T) {
	doc, err := Parse([]byte(flatXML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if doc.Dialect != DialectFlat {
		t.Errorf("expected flat dialect, got %s", doc.Dialect)
	}
	if len(doc.Files) != 1 || doc.Files[0].Path != "lib/util.js" {
		t.Fatalf("unexpected files: %+v", doc.Files)
	}
	// Fully covered conditions are not a partial branch.
	if doc.Files[0].Lines[1].Partial {
		t.Error("2/2 condition coverage must not be partial")
	}
	if doc.BranchesValid != 0 {
		t.Errorf("absent branches-valid should default to 0, got %d", doc.BranchesValid)
	}
}

func TestParseMalformedXML(t *testing.T) {
	if _, err := Parse([]byte("<coverage><packages>")); err == nil {
		t.Fatal("expected error for malformed XML")
	}
}

func TestParseUnknownDialect(t *testing.T) {
	doc, err := Parse([]byte(`<coverage line-rate="1.0"></coverage>`))
	if !errors.Is(err, ErrUnknownDialect) {
		t.Fatalf("expected ErrUnknownDialect, got %v", err)
	}
	if doc == nil || len(doc.Files) != 0 {
		t.Error("unknown dialect must yield an empty document, not nil or files")
	}
}

func TestParseNonNumericHits(t *testing.T) {
	bad := `<coverage><classes><class filename="a.py"><lines>
		<line number="1" hits="lots"/>
	</lines></class></classes></coverage>`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected error for non-numeric hits")
	}
}

func TestParseNonNumericLineNumber(t *testing.T) {
	bad := `<coverage><classes><class filename="a.py"><lines>
		<line number="first" hits="1"/>
	</lines></class></classes></coverage>`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected error for non-numeric line number")
	}
}

func TestFileStats(t *testing.T) {
	doc, err := Parse([]byte(packagedXML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	st := doc.Files[0].Stats()
	if st.TotalLines != 3 || st.CoveredLines != 2 || st.Misses != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if len(st.MissingLines) != 1 || st.MissingLines[0] != 2 {
		t.Errorf("expected missing lines [2], got %v", st.MissingLines)
	}
	if st.Partials != 1 {
		t.Errorf("expected 1 partial, got %d", st.Partials)
	}
}

func TestFileStatsEmptyFile(t *testing.T) {
	fc := FileCoverage{Path: "empty.py"}
	if pct := fc.Stats().Percent; pct != 0 {
		t.Errorf("empty file must be 0%%, got %f", pct)
	}
}

func TestOverallStats(t *testing.T) {
	doc, err := Parse([]byte(packagedXML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	st := doc.Stats()
	if st.TotalFiles != 1 || st.TotalLines != 3 || st.CoveredLines != 2 {
		t.Errorf("unexpected overall stats: %+v", st)
	}
	// Root line-rate attribute wins over the computed ratio.
	if st.Percent < 66.6 || st.Percent > 66.7 {
		t.Errorf("expected ~66.66%%, got %f", st.Percent)
	}
}

func TestOverallStatsComputedPercent(t *testing.T) {
	doc := &Document{Files: []FileCoverage{
		{Path: "a.py", Lines: []Line{{Number: 1, Hits: 1}, {Number: 2, Hits: 0}}},
	}}
	if pct := doc.Stats().Percent; pct != 50 {
		t.Errorf("expected computed 50%%, got %f", pct)
	}
}
