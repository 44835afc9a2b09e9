package ir

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version constants for the IR schema and the analyzer.
const (
	// IRVersion is the IR document schema version.
	IRVersion = "1.0.0"

	// AnalyzerVersion is the mirdump analyzer version.
	AnalyzerVersion = "0.1.0"

	// compatibleIRVersions is the range of document versions this build reads.
	compatibleIRVersions = "^1"
)

// Document is the serialized form of compiled bodies.
type Document struct {
	IRVersion string `json:"ir_version"`
	Bodies    []Body `json:"bodies"`
}

// CheckCompatible returns an error unless version is a semantic version
// readable by this build.
func CheckCompatible(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid IR version %q: %w", version, err)
	}
	c, err := semver.NewConstraint(compatibleIRVersions)
	if err != nil {
		return fmt.Errorf("invalid IR version constraint: %w", err)
	}
	if !c.Check(v) {
		return fmt.Errorf("IR version %s is not compatible with %s", version, compatibleIRVersions)
	}
	return nil
}
