package song

import (
	"errors"
	"strings"
)

// ErrUnknownField is returned for field names outside the song schema.
var ErrUnknownField = errors.New("unknown field")

// ValidationError lists required fields left blank. It is produced locally and
// never reaches the document store.
type ValidationError struct {
	Missing []Field
}

func (e *ValidationError) Error() string {
	labels := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		labels[i] = strings.ToLower(f.Label())
	}
	return "missing required " + strings.Join(labels, ", ")
}

// Has reports whether f is among the missing fields.
func (e *ValidationError) Has(f Field) bool {
	for _, m := range e.Missing {
		if m == f {
			return true
		}
	}
	return false
}
