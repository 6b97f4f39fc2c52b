// Package pathnorm canonicalizes file paths so that entries from a coverage
// report and from a pull request's changed-file listing share one identity.
package pathnorm

import "strings"

// sourceRoots are known repository-layout prefixes that appear in one naming
// convention but not the other. They are stripped in order.
var sourceRoots = []string{
	"./",
	"src/main/java/",
	"src/main/python/",
	"src/",
}

// Normalize converts separators to "/" and strips known source-root prefixes
// until the path stops changing. It is the sole identity key used to match PR
// files to report entries, so Normalize(Normalize(p)) == Normalize(p) must
// hold for every input.
func Normalize(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	for {
		next := p
		for _, root := range sourceRoots {
			next = strings.TrimPrefix(next, root)
		}
		if next == p {
			return p
		}
		p = next
	}
}
