package types

// Violation is one failed pre-trade check.
type Violation struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type Violations []Violation

// Blocking reports whether the violations reject the order: any CRITICAL, or
// more than one HIGH.
func (vs Violations) Blocking() bool {
	highs := 0

	for _, v := range vs {
		switch v.Severity {
		case SeverityCritical:
			return true
		case SeverityHigh:
			highs++
		}
	}

	return highs > 1
}

// Score sums the severity weights, capped at 100.
func (vs Violations) Score() int {
	score := 0
	for _, v := range vs {
		score += v.Severity.Weight()
	}

	if score > 100 {
		return 100
	}

	return score
}

func (vs Violations) Codes() []string {
	codes := make([]string, 0, len(vs))
	for _, v := range vs {
		codes = append(codes, v.Code)
	}

	return codes
}

// Has reports whether a violation with code is present.
func (vs Violations) Has(code string) bool {
	for _, v := range vs {
		if v.Code == code {
			return true
		}
	}

	return false
}
