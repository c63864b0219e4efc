// Package codec converts records to and from the single-line text formats
// of the flat-file corpus. Every Decode function is total: malformed input
// yields a *DecodeError, never a panic.
package codec

import (
	"fmt"
	"time"

	"github.com/starford/quackstagram/internal/apperr"
)

// TimeLayout is the timestamp format shared by pictures and notifications.
const TimeLayout = "2006-01-02 15:04:05"

// DecodeError describes a line that matches no known shape for Kind.
type DecodeError struct {
	Kind   string
	Line   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: %s line %q: %s", e.Kind, e.Line, e.Reason)
}

// Is makes every DecodeError match apperr.ErrMalformed.
func (e *DecodeError) Is(target error) bool {
	return target == apperr.ErrMalformed
}

func malformed(kind, line, reason string) error {
	return &DecodeError{Kind: kind, Line: line, Reason: reason}
}

func formatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.Local)
}
