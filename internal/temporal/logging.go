package temporal

import (
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/log"
)

// LoggerAdapter feeds the Temporal SDK's key/value logging into zerolog so
// the worker shares the application's log stream.
type LoggerAdapter struct {
	logger zerolog.Logger
}

func NewLoggerAdapter(logger zerolog.Logger) log.Logger {
	return &LoggerAdapter{
		logger: logger.With().Str("component", "temporal-sdk").Logger(),
	}
}

func (a *LoggerAdapter) emit(level zerolog.Level, msg string, keyvals []interface{}) {
	event := a.logger.WithLevel(level)

	// The SDK passes alternating keys and values; tolerate a dangling key
	// and non-string keys rather than dropping the entry.
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = "INVALID_KEY"
		}
		var value interface{} = "MISSING_VALUE"
		if i+1 < len(keyvals) {
			value = keyvals[i+1]
		}
		event = event.Interface(key, value)
	}
	event.Msg(msg)
}

func (a *LoggerAdapter) Debug(msg string, keyvals ...interface{}) {
	a.emit(zerolog.DebugLevel, msg, keyvals)
}

func (a *LoggerAdapter) Info(msg string, keyvals ...interface{}) {
	a.emit(zerolog.InfoLevel, msg, keyvals)
}

func (a *LoggerAdapter) Warn(msg string, keyvals ...interface{}) {
	a.emit(zerolog.WarnLevel, msg, keyvals)
}

func (a *LoggerAdapter) Error(msg string, keyvals ...interface{}) {
	a.emit(zerolog.ErrorLevel, msg, keyvals)
}
