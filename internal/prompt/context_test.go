package prompt

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/iocsight/internal/domain"
)

func TestBuildContext_Empty(t *testing.T) {
	if got := BuildContext(nil); got != "" {
		t.Fatalf("expected empty block for nil matches, got %q", got)
	}
	if got := BuildContext([]domain.Match{}); got != "" {
		t.Fatalf("expected empty block for zero matches, got %q", got)
	}
}

func TestBuildContext_OneLinePerMatch(t *testing.T) {
	matches := []domain.Match{
		{ID: "ioc-1", Metadata: domain.Metadata{
			Type: "ip", Value: "1.2.3.4", Severity: "high", Confidence: "90",
		}},
		{ID: "ioc-2", Metadata: domain.Metadata{
			Type: "url", Value: "http://bad.example", Severity: "low", Confidence: "40",
		}},
	}

	block := BuildContext(matches)

	lines := strings.Split(strings.TrimRight(block, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), block)
	}
	if lines[0] != "- ip | 1.2.3.4 | Severity: high | Confidence: 90" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "- url | http://bad.example | Severity: low | Confidence: 40" {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}

func TestBuildContext_MissingFieldsKeepLine(t *testing.T) {
	matches := []domain.Match{
		{ID: "ioc-1", Metadata: domain.Metadata{}},
	}

	block := BuildContext(matches)

	want := "- Unknown |  | Severity:  | Confidence: \n"
	if block != want {
		t.Fatalf("expected %q, got %q", want, block)
	}
}

func TestBuildContext_Pure(t *testing.T) {
	matches := []domain.Match{
		{ID: "a", Metadata: domain.Metadata{Type: "domain", Value: "evil.example", Severity: "medium", Confidence: "75"}},
		{ID: "b", Metadata: domain.Metadata{Type: "hash", Value: "deadbeef"}},
	}

	first := BuildContext(matches)
	second := BuildContext(matches)

	if first != second {
		t.Fatalf("expected identical output on repeated calls:\n%q\n%q", first, second)
	}
}

func TestBuildContext_OrderPreserved(t *testing.T) {
	matches := []domain.Match{
		{ID: "1", Metadata: domain.Metadata{Value: "first"}},
		{ID: "2", Metadata: domain.Metadata{Value: "second"}},
		{ID: "3", Metadata: domain.Metadata{Value: "third"}},
	}

	block := BuildContext(matches)

	firstIdx := strings.Index(block, "first")
	secondIdx := strings.Index(block, "second")
	thirdIdx := strings.Index(block, "third")
	if firstIdx < 0 || secondIdx < 0 || thirdIdx < 0 {
		t.Fatalf("missing values in block: %q", block)
	}
	if !(firstIdx < secondIdx && secondIdx < thirdIdx) {
		t.Fatalf("order not preserved: %q", block)
	}
}
