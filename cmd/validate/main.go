// Command validate performs integrity checks on persisted consumptive-use
// CSVs: the ET partition balances, balance terms stay within their bounds,
// and the stored balance matches a recomputation from its own input depths.
//
// Usage:
//
//	go run ./cmd/validate -dir data/output
//	go run ./cmd/validate -dir data/output -capacity 12 -runoff 0.1
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/mmaneta/eki-lpr-update/internal/adapter/csvstore"
	"github.com/mmaneta/eki-lpr-update/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type unitFile struct {
	path   string
	series domain.PartitionSeries
}

func main() {
	defaults := domain.DefaultSoilParams()
	dir := flag.String("dir", "", "directory containing consumptive-use CSV files")
	capacity := flag.Float64("capacity", defaults.Capacity, "soil storage capacity the files were computed with (inches)")
	runoff := flag.Float64("runoff", defaults.RunoffFraction, "runoff fraction the files were computed with")
	initial := flag.Float64("initial", defaults.InitialStorage, "initial soil storage the files were computed with (inches)")
	tol := flag.Float64("tol", 1e-6, "absolute and relative tolerance for float comparisons")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	params := domain.SoilParams{Capacity: *capacity, RunoffFraction: *runoff, InitialStorage: *initial}
	if err := params.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	if code := run(*dir, params, *tol); code != 0 {
		os.Exit(code)
	}
}

func run(dir string, params domain.SoilParams, tol float64) int {
	fmt.Println("=== Consumptive Use Integrity Validation ===")
	fmt.Println()

	units, err := loadDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load consumptive-use CSVs: %v\n", err)
		return 1
	}
	if len(units) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no consumptive-use CSVs in %s\n", dir)
		return 1
	}

	phases := []*phase{
		validateETPartition(units, tol),
		validateBounds(units, params, tol),
		validateRecomputation(units, params, tol),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	rows := 0
	applied := make([]float64, 0, len(units))
	for _, u := range units {
		rows += u.series.Len()
		applied = append(applied, floats.Sum(u.series.CUFromAppliedWater))
	}
	fmt.Println()
	fmt.Printf("Units: %d, rows: %d, applied water: %.3f in summed over units\n", len(units), rows, floats.Sum(applied))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadDir(dir string) ([]unitFile, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	var out []unitFile
	for _, path := range paths {
		series, err := csvstore.LoadConsumptiveUse(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		for _, s := range series {
			out = append(out, unitFile{path: filepath.Base(path), series: s})
		}
	}
	return out, nil
}

func near(a, b, tol float64) bool {
	return scalar.EqualWithinAbsOrRel(a, b, tol, tol)
}

// ── Phase 1: ET partition ──
// ET is fully split into precipitation-supplied and applied-water use.

func validateETPartition(units []unitFile, tol float64) *phase {
	p := &phase{name: "Phase 1: ET Partition"}
	for _, u := range units {
		s := u.series
		for i := range s.Time {
			sum := s.CUFromPrecip[i] + s.CUFromAppliedWater[i]
			if !near(sum, s.ET[i], tol) {
				p.errorf("%s %s %s: cu_from_precip + cu_from_applied_water = %g, et_depth = %g",
					u.path, s.Unit, s.Time[i].Format("2006-01-02"), sum, s.ET[i])
			}
			if !near(s.CUFromPrecip[i], s.EffectivePrecip[i]+s.CUFromSoilStorage[i], tol) {
				p.errorf("%s %s %s: cu_from_precip %g != effective_precip + cu_from_soil_storage %g",
					u.path, s.Unit, s.Time[i].Format("2006-01-02"), s.CUFromPrecip[i], s.EffectivePrecip[i]+s.CUFromSoilStorage[i])
			}
		}
	}
	return p
}

// ── Phase 2: Bounds ──
// Effective precipitation, runoff, storage, and applied water stay in range.

func validateBounds(units []unitFile, params domain.SoilParams, tol float64) *phase {
	p := &phase{name: "Phase 2: Term Bounds"}
	for _, u := range units {
		s := u.series
		for i := range s.Time {
			at := fmt.Sprintf("%s %s %s", u.path, s.Unit, s.Time[i].Format("2006-01-02"))
			if s.EffectivePrecip[i] < -tol || s.EffectivePrecip[i] > min(s.Precip[i], s.ET[i])+tol {
				p.errorf("%s: effective_precip %g outside [0, min(precip %g, et %g)]", at, s.EffectivePrecip[i], s.Precip[i], s.ET[i])
			}
			if s.Runoff[i] < -tol || s.Runoff[i] > s.Precip[i]-s.EffectivePrecip[i]+tol {
				p.errorf("%s: runoff %g exceeds non-effective precipitation %g", at, s.Runoff[i], s.Precip[i]-s.EffectivePrecip[i])
			}
			if s.CUFromSoilStorage[i] < -tol {
				p.errorf("%s: cu_from_soil_storage %g is negative", at, s.CUFromSoilStorage[i])
			}
			if s.CUFromAppliedWater[i] < -tol {
				p.errorf("%s: cu_from_applied_water %g is negative", at, s.CUFromAppliedWater[i])
			}
			if i > 0 && (s.SoilStorage[i] < -tol || s.SoilStorage[i] > params.Capacity+tol) {
				p.errorf("%s: soil_storage_after %g outside [0, %g]", at, s.SoilStorage[i], params.Capacity)
			}
		}
	}
	return p
}

// ── Phase 3: Recomputation ──
// Running the balance over the stored input depths reproduces every column.

func validateRecomputation(units []unitFile, params domain.SoilParams, tol float64) *phase {
	p := &phase{name: "Phase 3: Recomputation Parity"}
	for _, u := range units {
		s := u.series
		samples := make([]domain.Sample, s.Len())
		for i := range s.Time {
			samples[i] = domain.Sample{Time: s.Time[i], Precip: s.Precip[i], ET: s.ET[i]}
		}
		again, err := domain.RunRecurrence(s.Unit, params, samples)
		if err != nil {
			p.errorf("%s %s: recompute: %v", u.path, s.Unit, err)
			continue
		}

		columns := []struct {
			name       string
			got, again []float64
		}{
			{"effective_precip", s.EffectivePrecip, again.EffectivePrecip},
			{"runoff", s.Runoff, again.Runoff},
			{"cu_from_soil_storage", s.CUFromSoilStorage, again.CUFromSoilStorage},
			{"soil_storage_after", s.SoilStorage, again.SoilStorage},
			{"cu_from_applied_water", s.CUFromAppliedWater, again.CUFromAppliedWater},
			{"cu_from_precip", s.CUFromPrecip, again.CUFromPrecip},
		}
		for _, c := range columns {
			if floats.EqualApprox(c.got, c.again, tol) {
				continue
			}
			for i := range c.got {
				if !near(c.got[i], c.again[i], tol) {
					p.errorf("%s %s %s: %s stored %g, recomputed %g",
						u.path, s.Unit, s.Time[i].Format("2006-01-02"), c.name, c.got[i], c.again[i])
					break
				}
			}
		}
	}
	return p
}
