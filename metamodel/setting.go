package metamodel

import (
	"strings"

	"golang.org/x/text/cases"
)

// PopulationSetting controls whether the Go type index of the metamodel is
// populated.
type PopulationSetting uint8

// Population settings.
const (
	// PopulationIgnoreUnsupported populates the index and skips types that
	// cannot be indexed, such as map-mode types.
	PopulationIgnoreUnsupported PopulationSetting = iota
	// PopulationEnabled populates the index and fails on types that cannot
	// be indexed.
	PopulationEnabled
	// PopulationDisabled leaves the index empty.
	PopulationDisabled
)

// ParsePopulationSetting parses s case-insensitively. It never fails:
// unrecognized or empty input yields PopulationIgnoreUnsupported.
func ParsePopulationSetting(s string) PopulationSetting {
	switch cases.Fold().String(strings.TrimSpace(s)) {
	case "enabled":
		return PopulationEnabled
	case "disabled":
		return PopulationDisabled
	default:
		return PopulationIgnoreUnsupported
	}
}

func (p PopulationSetting) String() string {
	switch p {
	case PopulationEnabled:
		return "enabled"
	case PopulationDisabled:
		return "disabled"
	default:
		return "ignore-unsupported"
	}
}
