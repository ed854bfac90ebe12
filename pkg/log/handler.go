package log

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	vperrors "github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// ErrFmtHandler decorates records carrying an ErrAttrKey attribute with the
// stack trace recorded by cockroachdb/errors and the kind of the error.
type ErrFmtHandler struct {
	handler slog.Handler
}

// WrapByErrFmtHandler wraps handler with error decoration.
func WrapByErrFmtHandler(handler slog.Handler) slog.Handler {
	return &ErrFmtHandler{handler: handler}
}

func (eh *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return eh.handler.Enabled(ctx, l)
}

func (eh *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var found error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		found, _ = attr.Value.Any().(error)
		return false
	})
	if found != nil {
		if st := extractStacktrace(found); st != "" {
			r.AddAttrs(slog.String(StacktraceAttrKey, st))
		}
		r.AddAttrs(slog.String(ErrKindAttrKey, ErrorKind(found)))
	}
	return eh.handler.Handle(ctx, r)
}

func (eh *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithAttrs(attrs)}
}

func (eh *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithGroup(g)}
}

// ErrorKind classifies err by the structured error it wraps, "unknown"
// otherwise.
func ErrorKind(err error) string {
	var (
		notFitted  *vperrors.NotFittedError
		dimension  *vperrors.DimensionError
		validation *vperrors.ValidationError
		value      *vperrors.ValueError
		modelErr   *vperrors.ModelError
		panicErr   *vperrors.PanicError
	)
	switch {
	case errors.As(err, &notFitted):
		return "not_fitted"
	case errors.As(err, &dimension):
		return "dimension"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &value):
		return "value"
	case errors.As(err, &modelErr):
		return "model"
	case errors.As(err, &panicErr):
		return "panic"
	case errors.Is(err, vperrors.ErrAllFitsFailed):
		return "all_fits_failed"
	default:
		return "unknown"
	}
}

// extractStacktrace returns the first safe detail of err, which for errors
// built with errors.WithStack is the formatted stack.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
