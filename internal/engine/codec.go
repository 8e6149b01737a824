package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// supportedSchema is the range of report schema versions DecodeReport accepts.
const supportedSchema = "^1.0.0"

// ErrUnsupportedSchema is returned when a report was written by an
// incompatible schema version.
var ErrUnsupportedSchema = errors.New("unsupported report schema version")

// EncodeReport serializes a report as indented JSON for audit export.
func EncodeReport(r Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return data, nil
}

// DecodeReport parses a report previously produced by EncodeReport. Reports
// without a schema_version are accepted as-is so older exports still load.
func DecodeReport(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("decoding report: %w", err)
	}
	if err := checkSchema(r.SchemaVersion); err != nil {
		return Report{}, err
	}
	return r, nil
}

func checkSchema(version string) error {
	if version == "" {
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnsupportedSchema, version, err)
	}
	c, err := semver.NewConstraint(supportedSchema)
	if err != nil {
		return fmt.Errorf("parsing schema constraint: %w", err)
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: %s (want %s)", ErrUnsupportedSchema, version, supportedSchema)
	}
	return nil
}
