// Package errx provides small helpers for combining sentinel errors with
// dynamic context while keeping both matchable via errors.Is.
package errx

import "fmt"

// Wrap attaches err as the cause of sentinel. Both errors remain visible to
// errors.Is / errors.As.
func Wrap(sentinel, err error) error {
	return fmt.Errorf("%w: %w", sentinel, err)
}

// With appends formatted context to sentinel. The format string supplies its
// own separator (usually a leading ": ").
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}
