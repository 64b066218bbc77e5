package channel

import (
	"strings"

	"github.com/pkg/errors"
)

// DefaultMaxLength is the longest channel name the messaging platform accepts.
const DefaultMaxLength = 80

var ErrInvalidName = errors.New("invalid channel name")

// Rule describes which channel names are accepted.
type Rule struct {
	MaxLength int
}

func NewRule(maxLength int) Rule {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return Rule{MaxLength: maxLength}
}

// Valid reports whether name is 1..MaxLength characters of [a-z0-9_-].
func (r Rule) Valid(name string) bool {
	if len(name) == 0 || len(name) > r.MaxLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !allowed(name[i]) {
			return false
		}
	}
	return true
}

func (r Rule) Validate(name string) error {
	if !r.Valid(name) {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return nil
}

// Valid checks name against the default rule.
func Valid(name string) bool {
	return NewRule(DefaultMaxLength).Valid(name)
}

// Normalize turns a raw slash command argument into a bare channel name.
// Only surrounding whitespace and a single leading '#' are removed.
func Normalize(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "#")
}

func allowed(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}
