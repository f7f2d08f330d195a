package observability

import (
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the service logger from the LOG_LEVEL and LOG_FORMAT
// settings.
func NewLogger(level, format string) *slog.Logger {
	return sharedobs.NewLogger(level, format)
}
