package log

import (
	"log/slog"
	"os"

	"github.com/flipflow/flipflow"
)

// New constructs the service's JSON slog.Logger at the given level.
// Every line carries the flipflow identity plus the deployment
// environment, so aggregated logs separate cleanly by service and env
func New(env string, lvl slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})

	return slog.New(handler).With(
		slog.String("service", flipflow.Name),
		slog.String("version", flipflow.Version),
		slog.String("env", env))
}
