package errs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Wrap prefixes err with msg. errors.Is and errors.As still see err.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WithStack records the current stack on err. Call it where a store, SDK or
// network call failed; an error that already carries a stack is returned as is.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := stackOf(err); ok {
		return err
	}
	return &StackError{err: err, stack: debug.Stack()}
}

// StackError is an error with the stack captured by WithStack.
type StackError struct {
	err   error
	stack []byte
}

func (e *StackError) Error() string { return e.err.Error() }
func (e *StackError) Unwrap() error { return e.err }
func (e *StackError) Stack() []byte { return e.stack }

func stackOf(err error) (*StackError, bool) {
	var se *StackError
	ok := errors.As(err, &se)
	return se, ok
}

// IsContextDone reports whether err came from a cancelled or expired context.
func IsContextDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type loggable struct{ err error }

// Loggable logs err as a group with its message, unwrap chain and, when
// recorded, its stack: slog.Any("err", errs.Loggable(err)).
func Loggable(err error) slog.LogValuer { return loggable{err: err} }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}

	attrs := make([]slog.Attr, 0, 3)
	attrs = append(attrs,
		slog.String("message", l.err.Error()),
		slog.Any("chain", ErrorChainStrings(l.err)),
	)
	if se, ok := stackOf(l.err); ok {
		attrs = append(attrs, slog.String("stack", string(se.Stack())))
	}
	return slog.GroupValue(attrs...)
}

// ErrorChainStrings lists err and everything it wraps, outermost first.
func ErrorChainStrings(err error) []string {
	var out []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		out = append(out, e.Error())
	}
	return out
}
