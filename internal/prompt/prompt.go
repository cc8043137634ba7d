package prompt

import (
	"fmt"

	"github.com/kailas-cloud/iocsight/internal/domain"
)

// System prompts per use case. Fixed strings; the user prompt carries all
// variable content.
const (
	askSystemPrompt         = "You are a threat intelligence assistant. Use the context to answer questions."
	enrichSystemPrompt      = "You are a cyber threat analyst AI. Enrich the given IOC with context, threats, and recommended mitigations."
	impactSystemPrompt      = "You are a cybersecurity BCM analyst. Assess the business continuity impact of the threat based on the client's sector."
	batchImpactSystemPrompt = "You are a cybersecurity BCM analyst. Given an IOC, assess its business continuity impact."
	reportSystemPrompt      = "You are a security report generator. Create a summary report based on threat data and intelligence insights."
)

// TimeRange bounds a report.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ReportParams are the report-rendering inputs. Zero-value Type and Format
// fall back to "executive" and "markdown".
type ReportParams struct {
	Type                   string
	Format                 string
	TimeRange              TimeRange
	IncludeCharts          bool
	IncludeRecommendations bool
}

// Ask renders the question-answering prompt pair. The context block is
// injected as-is; an empty block still renders a complete prompt.
func Ask(question, contextBlock string) domain.GenerationRequest {
	return domain.GenerationRequest{
		SystemPrompt: askSystemPrompt,
		UserPrompt: fmt.Sprintf("Question: %s\n\nContext:\n%s\n\nAnswer clearly:",
			question, contextBlock),
	}
}

// Enrich renders the single-indicator enrichment prompt pair.
func Enrich(ioc, iocType, severity string) domain.GenerationRequest {
	return domain.GenerationRequest{
		SystemPrompt: enrichSystemPrompt,
		UserPrompt: fmt.Sprintf(
			"IOC: %s\nType: %s\nSeverity: %s\n\nProvide enriched threat context and remediation.",
			ioc, iocType, severity),
	}
}

// Impact renders the business-continuity assessment prompt pair for an
// explicitly supplied indicator. An empty sector renders as "general".
func Impact(ioc, iocType, severity, sector string) domain.GenerationRequest {
	if sector == "" {
		sector = domain.DefaultSector
	}

	return domain.GenerationRequest{
		SystemPrompt: impactSystemPrompt,
		UserPrompt: fmt.Sprintf(`
IOC: %s
Type: %s
Severity: %s
Client Sector: %s

Estimate impact:
- High: Affects critical business operations, customer-facing systems, or revenue generators
- Medium: Disrupts internal processes or support functions
- Low: Minimal or no business disruption

Return:
- BCM Impact Level
- Business Reason
- Suggested Mitigation
`, ioc, iocType, severity, sector),
	}
}

// BatchImpact renders the per-match assessment prompt pair used by the
// dashboard fan-out. Corpus metadata may be sparse; severity defaults to
// "medium" and sector to "general".
func BatchImpact(md domain.Metadata) domain.GenerationRequest {
	return domain.GenerationRequest{
		SystemPrompt: batchImpactSystemPrompt,
		UserPrompt: fmt.Sprintf(`
IOC: %s
Type: %s
Severity: %s
Client Sector: %s

Return BCM impact:
- BCM Impact Level
- Business Reason
- Suggested Mitigation
`, md.Value, md.Type, md.SeverityOrDefault(), md.SectorOrDefault()),
	}
}

// Report renders the summary-report prompt pair.
func Report(p ReportParams) domain.GenerationRequest {
	if p.Type == "" {
		p.Type = "executive"
	}
	if p.Format == "" {
		p.Format = "markdown"
	}

	return domain.GenerationRequest{
		SystemPrompt: reportSystemPrompt,
		UserPrompt: fmt.Sprintf(`
Type: %s
Format: %s
Time Range: %s to %s
Charts: %t
Recommendations: %t

Return a well-structured report.
`, p.Type, p.Format, p.TimeRange.Start, p.TimeRange.End,
			p.IncludeCharts, p.IncludeRecommendations),
	}
}
