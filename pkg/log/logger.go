package log

import (
	"log/slog"
	"os"

	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// SetupLogger configures the process-wide loggers: the default slog handler
// (JSON to stdout, stack traces extracted from cockroachdb errors) and the
// zerolog provider returned by GetLogger. Warnings raised through
// errors.Warn are routed to the zerolog provider.
func SetupLogger(loglevel string) error {
	level, err := ParseLevel(loglevel)
	if err != nil {
		return err
	}

	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     slog.Level(level),
		// Replace attributes to convert to CloudLogging format.
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{
					Key:   "severity",
					Value: attr.Value,
				}
			case slog.MessageKey:
				attr = slog.Attr{
					Key:   "message",
					Value: attr.Value,
				}
			case slog.SourceKey:
				attr = slog.Attr{
					Key:   "logging.googleapis.com/sourceLocation",
					Value: attr.Value,
				}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(os.Stdout, &ops)
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))

	provider := NewZerologProvider(os.Stdout, level)
	SetProvider(provider)
	errors.SetZerologWarnFunc(provider.warn)
	return nil
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
	ErrKindAttrKey    = "error_kind"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// LogError logs err at error level on the default slog logger together with
// its stack trace.
func LogError(err error, msg string, args ...any) {
	slog.Error(msg, append([]any{ErrAttr(err)}, args...)...)
}
