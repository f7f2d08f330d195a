package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Repurposed status tags used in dataset names.
const (
	StatusRepurposed    = "repurposed"
	StatusNonRepurposed = "nonrepurposed"
)

// DatasetTag is parsed from a dataset file name of the form
// <Year>_<enrollment>_<status>_<variable>.csv.
type DatasetTag struct {
	ProgramYear string // "Year1"
	Enrollment  string // "enrolled"
	Status      string // "repurposed" or "nonrepurposed"
	Variable    Variable
}

// ParseDatasetName parses the tag from a path's base name.
func ParseDatasetName(path string) (DatasetTag, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(base, "_")
	if len(parts) != 4 {
		return DatasetTag{}, &InputValidationError{
			Field:  filepath.Base(path),
			Reason: "dataset name must look like <Year>_<enrollment>_<status>_<variable>.csv, e.g. Year1_enrolled_repurposed_pr.csv",
		}
	}
	tag := DatasetTag{
		ProgramYear: parts[0],
		Enrollment:  parts[1],
		Status:      parts[2],
		Variable:    Variable(parts[3]),
	}
	if !strings.HasPrefix(tag.ProgramYear, "Year") || len(tag.ProgramYear) == len("Year") {
		return DatasetTag{}, &InputValidationError{Field: filepath.Base(path), Reason: fmt.Sprintf("program year %q must look like Year1", tag.ProgramYear)}
	}
	if tag.Status != StatusRepurposed && tag.Status != StatusNonRepurposed {
		return DatasetTag{}, &InputValidationError{Field: filepath.Base(path), Reason: fmt.Sprintf("status %q must be %s or %s", tag.Status, StatusRepurposed, StatusNonRepurposed)}
	}
	return tag, nil
}

// Repurposed reports whether the dataset covers repurposed fields.
func (t DatasetTag) Repurposed() bool { return t.Status == StatusRepurposed }

// KeyProgramYear maps "Year1" to the key table tag "Yr1".
func (t DatasetTag) KeyProgramYear() string {
	return "Yr" + t.ProgramYear[len(t.ProgramYear)-1:]
}

// KeyFilter derives the key table filter for this dataset.
func (t DatasetTag) KeyFilter() BuildOptions {
	return BuildOptions{ProgramYear: t.KeyProgramYear(), Repurposed: t.Repurposed()}
}

// CheckCompatible fails when precipitation and ET datasets belong to
// different program years or repurposed status.
func CheckCompatible(precip, et DatasetTag) error {
	if precip.ProgramYear != et.ProgramYear {
		return &ConfigurationMismatchError{Tag: "program year", Precip: precip.ProgramYear, ET: et.ProgramYear}
	}
	if precip.Status != et.Status {
		return &ConfigurationMismatchError{Tag: "status", Precip: precip.Status, ET: et.Status}
	}
	return nil
}
