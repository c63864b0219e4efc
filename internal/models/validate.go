package models

import (
	"errors"
	"strings"
)

var errMultiline = errors.New("must not contain line breaks")

// singleLine rejects values that would split a record across lines.
func singleLine(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, "\r\n") {
		return errMultiline
	}
	return nil
}
