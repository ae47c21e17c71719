package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gridcast/gridcast/internal/config"
)

// serviceName is attached to every record so logs aggregated across
// deployments stay attributable to this service.
const serviceName = "gridcast"

// New constructs the process-wide slog.Logger writing to stdout.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit destination. Tests use it to
// capture output.
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	return slog.New(handler).With(slog.String("service", serviceName)), nil
}
