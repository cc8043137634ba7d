// Package prompt renders retrieved matches into context blocks and builds
// the per-use-case prompt pairs. Everything here is a pure function of its
// inputs.
package prompt

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/iocsight/internal/domain"
)

// BuildContext renders matches into a prompt-injectable context block, one
// line per match in input order. A missing type renders as "Unknown" and a
// missing value as an empty string; the line itself is never omitted. Zero
// matches yield an empty block.
func BuildContext(matches []domain.Match) string {
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "- %s | %s | Severity: %s | Confidence: %s\n",
			m.Metadata.TypeOrDefault(),
			m.Metadata.Value,
			m.Metadata.Severity,
			m.Metadata.Confidence,
		)
	}
	return b.String()
}
