package governance

import (
	"fmt"
	"strings"
)

// Mode selects whether governance findings block mutation.
type Mode string

const (
	Strict   Mode = "Strict"
	Advisory Mode = "Advisory"
)

// ParseMode accepts "Strict" or "Advisory", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return Strict, nil
	case "advisory":
		return Advisory, nil
	}
	return "", fmt.Errorf("invalid governance mode %q: must be Strict or Advisory", s)
}

// LifecycleCoverage selects which lifecycle views the repository models.
// Only Both requires every element to carry a lifecycle tag.
type LifecycleCoverage string

const (
	CoverageAsIs LifecycleCoverage = "AsIs"
	CoverageToBe LifecycleCoverage = "ToBe"
	CoverageBoth LifecycleCoverage = "Both"
)

// ParseLifecycleCoverage accepts AsIs, ToBe or Both (and the hyphenated forms).
func ParseLifecycleCoverage(s string) (LifecycleCoverage, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "")) {
	case "asis":
		return CoverageAsIs, nil
	case "tobe":
		return CoverageToBe, nil
	case "both":
		return CoverageBoth, nil
	}
	return "", fmt.Errorf("invalid lifecycle coverage %q: must be AsIs, ToBe or Both", s)
}

// Policy is the per-repository governance setting.
type Policy struct {
	Mode              Mode              `json:"mode" yaml:"mode"`
	LifecycleCoverage LifecycleCoverage `json:"lifecycleCoverage" yaml:"lifecycleCoverage"`
}

// DefaultPolicy is Strict with As-Is coverage.
func DefaultPolicy() Policy {
	return Policy{Mode: Strict, LifecycleCoverage: CoverageAsIs}
}
