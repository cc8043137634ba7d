package domain

// KeyPrefix namespaces all store keys and FT indexes.
const KeyPrefix = "iocsight:"

// Defaults substituted for absent optional metadata fields at the
// context-assembly / prompt boundary.
const (
	DefaultIndicatorType = "Unknown"
	DefaultSeverity      = "medium"
	DefaultSector        = "general"
)

// Metadata is the typed view of the indicator fields stored alongside a
// vector. All fields are optional; an empty string means the field was
// absent in the corpus record.
type Metadata struct {
	Type       string
	Value      string
	Severity   string
	Confidence string
	Sector     string
}

// TypeOrDefault returns the indicator type or "Unknown".
func (m Metadata) TypeOrDefault() string {
	if m.Type == "" {
		return DefaultIndicatorType
	}
	return m.Type
}

// SeverityOrDefault returns the severity or "medium".
func (m Metadata) SeverityOrDefault() string {
	if m.Severity == "" {
		return DefaultSeverity
	}
	return m.Severity
}

// SectorOrDefault returns the client sector or "general".
func (m Metadata) SectorOrDefault() string {
	if m.Sector == "" {
		return DefaultSector
	}
	return m.Sector
}

// Match is a single similarity hit from the indicator corpus.
// Score is a similarity in [0,1], higher is closer; it is passed through
// from the index unmodified.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}
