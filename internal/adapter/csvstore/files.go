package csvstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mmaneta/eki-lpr-update/internal/domain"
)

// LoadFieldRows reads a precipitation or ET table from path.
func LoadFieldRows(path string) ([]domain.FieldRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadFieldRows(f, filepath.Base(path))
}

// LoadFieldKeys reads the field key table from path.
func LoadFieldKeys(path string) ([]domain.FieldKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadFieldKeys(f, filepath.Base(path))
}

// LoadConsumptiveUse reads a consumptive-use table from path.
func LoadConsumptiveUse(path string) ([]domain.PartitionSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadConsumptiveUse(f, filepath.Base(path))
}

// LoadSeriesBuilder reads the precipitation, ET, and field key tables and
// indexes them for per-unit series building. opts usually comes from
// DatasetTag.KeyFilter.
func LoadSeriesBuilder(precipPath, etPath, keyPath string, opts domain.BuildOptions) (*domain.SeriesBuilder, error) {
	precip, err := LoadFieldRows(precipPath)
	if err != nil {
		return nil, fmt.Errorf("load precipitation: %w", err)
	}
	et, err := LoadFieldRows(etPath)
	if err != nil {
		return nil, fmt.Errorf("load ET: %w", err)
	}
	keys, err := LoadFieldKeys(keyPath)
	if err != nil {
		return nil, fmt.Errorf("load field keys: %w", err)
	}
	return domain.NewSeriesBuilder(precip, et, keys, opts), nil
}

// SaveFieldRows replaces the table at path. The file is written next to
// path and renamed into place, so readers never see a partial table.
func SaveFieldRows(path string, rows []domain.FieldRow) error {
	return writeAtomic(path, func(w io.Writer) error { return WriteFieldRows(w, rows) })
}

// SaveFieldKeys replaces the key table at path.
func SaveFieldKeys(path string, keys []domain.FieldKey) error {
	return writeAtomic(path, func(w io.Writer) error { return WriteFieldKeys(w, keys) })
}

// ResultFileName is the per-unit output name, e.g. LRP-001_Year1_repurposed.csv.
func ResultFileName(unit string, tag domain.DatasetTag) string {
	return fmt.Sprintf("%s_%s_%s.csv", unit, tag.ProgramYear, tag.Status)
}

// ResultWriter writes one consumptive-use file per unit into a directory.
type ResultWriter struct {
	dir string
	tag domain.DatasetTag
}

// NewResultWriter creates dir if needed.
func NewResultWriter(dir string, tag domain.DatasetTag) (*ResultWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &ResultWriter{dir: dir, tag: tag}, nil
}

// WriteSeries writes series to its unit file and returns the path.
func (w *ResultWriter) WriteSeries(series domain.PartitionSeries) (string, error) {
	path := filepath.Join(w.dir, ResultFileName(series.Unit, w.tag))
	err := writeAtomic(path, func(out io.Writer) error { return WriteConsumptiveUse(out, series) })
	if err != nil {
		return "", fmt.Errorf("write %s: %w", series.Unit, err)
	}
	return path, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
