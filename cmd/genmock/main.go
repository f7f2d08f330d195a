// Command genmock writes a deterministic synthetic LRP dataset: per-field
// precipitation and ET tables, the field key table, and an agreements file.
// The output matches the default LRP_* file settings, so the service and
// lrp-report run against it unchanged.
//
// Usage:
//
//	go run ./cmd/genmock -out data -units 4 -water-year 2025
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mmaneta/eki-lpr-update/internal/adapter/csvstore"
	"github.com/mmaneta/eki-lpr-update/internal/domain"
	"gopkg.in/yaml.v3"
)

// Monthly climatology in inches, October first.
var (
	precipNormals = [12]float64{0.8, 1.6, 2.4, 2.6, 2.3, 1.9, 0.9, 0.4, 0.1, 0, 0, 0.2}
	etNormals     = [12]float64{3.2, 1.5, 0.9, 1.0, 1.8, 3.0, 4.4, 5.9, 6.8, 7.2, 6.3, 4.7}
)

type field struct {
	id         string
	unit       string
	acres      float64
	wetness    float64 // precipitation multiplier
	thirst     float64 // ET multiplier
	repurposed bool
}

type agreementsFile struct {
	Agreements []domain.Agreement `yaml:"agreements"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory")
	units := flag.Int("units", 3, "number of accounting units")
	fieldsPerUnit := flag.Int("fields", 3, "fields per unit; the last one is non-repurposed")
	waterYear := flag.Int("water-year", 2025, "last water year to generate")
	years := flag.Int("years", 2, "number of water years to generate")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *units < 1 || *fieldsPerUnit < 2 || *years < 1 {
		return fmt.Errorf("-units must be >= 1, -fields >= 2, -years >= 1")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	fields := makeFields(rng, *units, *fieldsPerUnit)

	start := time.Date(*waterYear-*years, time.October, 1, 0, 0, 0, 0, time.UTC)
	precip, et := makeRows(rng, fields, start, *years*12)

	keys := make([]domain.FieldKey, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, domain.FieldKey{FieldID: f.id, UnitID: f.unit, ProgramYear: "Yr1", Repurposed: f.repurposed})
	}

	files := []struct {
		name  string
		write func(path string) error
	}{
		{"Year1_enrolled_repurposed_pr.csv", func(p string) error { return csvstore.SaveFieldRows(p, precip) }},
		{"Year1_enrolled_repurposed_ET.csv", func(p string) error { return csvstore.SaveFieldRows(p, et) }},
		{"EKIfld_IDs_key.csv", func(p string) error { return csvstore.SaveFieldKeys(p, keys) }},
		{"agreements.yaml", func(p string) error { return writeAgreements(p, makeAgreements(fields, *units)) }},
	}
	for _, f := range files {
		path := filepath.Join(*out, f.name)
		if err := f.write(path); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
		log.Printf("wrote %s", path)
	}
	log.Printf("total: %d units, %d fields, %d periods", *units, len(fields), *years*12)
	return nil
}

func makeFields(rng *rand.Rand, units, perUnit int) []field {
	fields := make([]field, 0, units*perUnit)
	for u := range units {
		unit := fmt.Sprintf("LRP-%03d", u+1)
		for k := range perUnit {
			fields = append(fields, field{
				id:         strconv.Itoa(1000 + u*100 + k),
				unit:       unit,
				acres:      round(20+rng.Float64()*100, 2),
				wetness:    0.8 + rng.Float64()*0.4,
				thirst:     0.9 + rng.Float64()*0.2,
				repurposed: k < perUnit-1,
			})
		}
	}
	return fields
}

func makeRows(rng *rand.Rand, fields []field, start time.Time, periods int) (precip, et []domain.FieldRow) {
	precip = make([]domain.FieldRow, 0, len(fields)*periods)
	et = make([]domain.FieldRow, 0, len(fields)*periods)
	for m := range periods {
		ts := start.AddDate(0, m, 0)
		// One storm signal per month shared by all fields.
		storm := 0.5 + rng.Float64()
		for _, f := range fields {
			pr := round(precipNormals[m%12]*storm*f.wetness, 4)
			ev := round(etNormals[m%12]*f.thirst*(0.95+rng.Float64()*0.1), 4)
			precip = append(precip, domain.FieldRow{Time: ts, FieldID: f.id, VolumeAF: domain.AcreFeetFromInches(pr, f.acres), AreaAcres: f.acres})
			et = append(et, domain.FieldRow{Time: ts, FieldID: f.id, VolumeAF: domain.AcreFeetFromInches(ev, f.acres), AreaAcres: f.acres})
		}
	}
	return precip, et
}

// makeAgreements sizes each agreement to its repurposed fields. Odd units get
// a tight cap so both verdicts appear in reports.
func makeAgreements(fields []field, units int) []domain.Agreement {
	area := make(map[string]float64, units)
	for _, f := range fields {
		if f.repurposed {
			area[f.unit] += f.acres
		}
	}
	out := make([]domain.Agreement, 0, units)
	for u := range units {
		unit := fmt.Sprintf("LRP-%03d", u+1)
		acres := round(area[unit], 2)
		allowance := 2.2 // AF per acre
		if u%2 == 1 {
			allowance = 1.2
		}
		baseline := round(acres*2.5, 1)
		maxCU := round(acres*allowance, 1)
		out = append(out, domain.Agreement{
			Number:                     unit,
			ParticipantName:            fmt.Sprintf("Participant %d", u+1),
			AreaAcres:                  acres,
			BaselineWaterUseAF:         baseline,
			MinimumWaterUseReductionAF: round(baseline-maxCU, 1),
			MaxConsumptiveUseAF:        maxCU,
		})
	}
	return out
}

func writeAgreements(path string, agreements []domain.Agreement) error {
	data, err := yaml.Marshal(agreementsFile{Agreements: agreements})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
