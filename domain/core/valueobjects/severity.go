package valueobjects

import (
	"fmt"
	"strings"

	pkgerrors "signalwatcher/pkg/errors"
)

// Severity ranks how serious an event is
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists every valid severity, least serious first
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ParseSeverity returns the severity named by s. Matching is exact.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.IsValid() {
		return "", pkgerrors.NewValidationError(
			fmt.Sprintf("severity must be one of: %s", strings.Join(SeverityNames(), ", ")))
	}
	return sev, nil
}

// IsValid checks the severity against the enumeration
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

func (s Severity) String() string {
	return string(s)
}

// SeverityNames returns the severities as strings
func SeverityNames() []string {
	names := make([]string, len(Severities))
	for i, s := range Severities {
		names[i] = string(s)
	}
	return names
}
