package testutil

import (
	"io"
	"log/slog"
)

// DiscardLogger returns a logger that drops every record, for tests that
// would otherwise spam output with expected warnings.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
