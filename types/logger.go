package types

// Logger is the structured logger used by services, views and rebalancers.
//
// Messages carry alternating key/value pairs, the convention of
// zap.SugaredLogger and log/slog, so either can be adapted with a thin wrapper.
// Implementations must be safe for concurrent use; listeners dispatch from
// backend goroutines.
//
// The library never logs at a level that terminates the process.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}
