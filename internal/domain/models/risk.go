package models

import "strings"

// RiskType classifies a sensitivity row.
type RiskType int

const (
	// RiskOther is any row that is neither Delta nor Gamma; it is passed over.
	RiskOther RiskType = iota
	// RiskDelta is a first-order sensitivity.
	RiskDelta
	// RiskGamma is a second-order sensitivity.
	RiskGamma
)

// ParseRiskType maps the raw "Risk Type" cell to a RiskType.
// Matching is exact (case-sensitive) after trimming surrounding spaces.
func ParseRiskType(s string) RiskType {
	switch strings.TrimSpace(s) {
	case "Delta":
		return RiskDelta
	case "Gamma":
		return RiskGamma
	default:
		return RiskOther
	}
}

func (t RiskType) String() string {
	switch t {
	case RiskDelta:
		return "Delta"
	case RiskGamma:
		return "Gamma"
	default:
		return "Other"
	}
}

// Measure returns the label written in the output measure column,
// e.g. "Delta P&L". It is empty for RiskOther.
func (t RiskType) Measure() string {
	if t == RiskOther {
		return ""
	}
	return t.String() + " P&L"
}
