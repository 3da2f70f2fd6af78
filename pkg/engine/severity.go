package engine

import (
	"strings"

	"github.com/pkg/errors"
)

// Severity is the shared five level scale every report format is mapped to.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityLabels = [...]string{"info", "low", "med", "high", "critical"}

func (s Severity) String() string {
	if s < SeverityInfo || s > SeverityCritical {
		return severityLabels[SeverityInfo]
	}
	return severityLabels[s]
}

// ParseSeverity accepts the canonical labels plus a few common spellings.
// Anything else is info.
func ParseSeverity(label string) Severity {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "low":
		return SeverityLow
	case "med", "medium", "moderate":
		return SeverityMedium
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	for i, l := range severityLabels {
		if l == string(b) {
			*s = Severity(i)
			return nil
		}
	}
	return errors.Errorf("unknown severity %q", string(b))
}

// Scale maps a format's native severity codes onto Severity. Normalize is
// total: codes outside the table, and missing codes, are info. That is the
// policy for every format, not an accident of lookup.
type Scale map[string]Severity

func (sc Scale) Normalize(code string) Severity {
	if sev, ok := sc[strings.TrimSpace(code)]; ok {
		return sev
	}
	return SeverityInfo
}

var (
	QualysScale = Scale{
		"1": SeverityInfo,
		"2": SeverityInfo,
		"3": SeverityMedium,
		"4": SeverityHigh,
		"5": SeverityCritical,
	}

	// ZapScale covers alert riskcode values.
	ZapScale = Scale{
		"0": SeverityInfo,
		"1": SeverityLow,
		"2": SeverityMedium,
		"3": SeverityHigh,
	}

	// MetasploitScale covers the 0-5 risk of web_vuln records.
	MetasploitScale = Scale{
		"0": SeverityInfo,
		"1": SeverityLow,
		"2": SeverityMedium,
		"3": SeverityHigh,
		"4": SeverityCritical,
		"5": SeverityCritical,
	}
)
