package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/mmaneta/eki-lpr-update/internal/domain"
	"gopkg.in/yaml.v3"
)

type agreementsFile struct {
	Agreements []domain.Agreement `yaml:"agreements"`
}

// LoadAgreements reads agreement metadata from a YAML file of the form
//
//	agreements:
//	  - number: LRP-001
//	    participant_name: Valley Farms
//	    area_acres: 120
//	    max_consumptive_use_af: 270
//
// and indexes it by agreement number.
func LoadAgreements(path string) (map[string]domain.Agreement, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agreements: %w", err)
	}
	var f agreementsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse agreements %s: %w", path, err)
	}

	out := make(map[string]domain.Agreement, len(f.Agreements))
	for i, a := range f.Agreements {
		if err := ValidateAgreement(a); err != nil {
			return nil, fmt.Errorf("agreement %d: %w", i, err)
		}
		if _, dup := out[a.Number]; dup {
			return nil, fmt.Errorf("agreement %s listed twice", a.Number)
		}
		out[a.Number] = a
	}
	return out, nil
}

// ValidateAgreement checks the fields statements depend on.
func ValidateAgreement(a domain.Agreement) error {
	if a.Number == "" {
		return errors.New("number is required")
	}
	if !(a.AreaAcres > 0) {
		return fmt.Errorf("%s: area_acres must be > 0", a.Number)
	}
	if a.MaxConsumptiveUseAF < 0 {
		return fmt.Errorf("%s: max_consumptive_use_af must be >= 0", a.Number)
	}
	return nil
}
