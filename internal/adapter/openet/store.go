package openet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/mmaneta/eki-lpr-update/internal/adapter/csvstore"
	"github.com/mmaneta/eki-lpr-update/internal/domain"
	"github.com/mmaneta/eki-lpr-update/internal/observability"
)

// Store keeps local per-variable datasets of one asset current.
type Store struct {
	dir     string
	asset   string
	source  domain.DatasetSource
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewStore creates a store writing <dir>/<asset>_<variable>.csv.
func NewStore(dir, asset string, source domain.DatasetSource, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{dir: dir, asset: asset, source: source, logger: logger, metrics: metrics}
}

// Path returns the local dataset file for v.
func (s *Store) Path(v domain.Variable) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", s.asset, v))
}

// Update makes the local dataset for q.Variable span q. It returns the
// dataset path and whether the remote source was queried.
func (s *Store) Update(ctx context.Context, q domain.DatasetQuery) (string, bool, error) {
	path := s.Path(q.Variable)
	local, err := csvstore.LoadFieldRows(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("load local dataset: %w", err)
	}

	rows, fetched, err := domain.RefreshFieldRows(ctx, local, q, s.source)
	if err != nil {
		s.metrics.DatasetFetches.WithLabelValues(string(q.Variable), "error").Inc()
		return "", fetched, err
	}
	if !fetched {
		s.metrics.DatasetFetches.WithLabelValues(string(q.Variable), "current").Inc()
		s.logger.Info("local dataset already covers requested range",
			"variable", q.Variable,
			"path", path,
		)
		return path, false, nil
	}

	if err := csvstore.SaveFieldRows(path, rows); err != nil {
		s.metrics.DatasetFetches.WithLabelValues(string(q.Variable), "error").Inc()
		return "", true, fmt.Errorf("save dataset: %w", err)
	}
	s.metrics.DatasetFetches.WithLabelValues(string(q.Variable), "fetched").Inc()
	s.logger.Info("dataset updated",
		"variable", q.Variable,
		"path", path,
		"local_rows", len(local),
		"rows", len(rows),
	)
	return path, true, nil
}
