package channel

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "simple", input: "general", want: true},
		{name: "digits and separators", input: "team-42_ops", want: true},
		{name: "single char", input: "a", want: true},
		{name: "exactly max length", input: strings.Repeat("a", 80), want: true},
		{name: "over max length", input: strings.Repeat("a", 81), want: false},
		{name: "empty", input: "", want: false},
		{name: "uppercase", input: "General_1", want: false},
		{name: "space", input: "my channel", want: false},
		{name: "hash kept", input: "#general", want: false},
		{name: "dot", input: "release.notes", want: false},
		{name: "non ascii", input: "café", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.input))
		})
	}
}

func TestRuleCustomLength(t *testing.T) {
	rule := NewRule(5)
	assert.True(t, rule.Valid("abcde"))
	assert.False(t, rule.Valid("abcdef"))

	assert.Equal(t, DefaultMaxLength, NewRule(0).MaxLength)
}

func TestValidate(t *testing.T) {
	rule := NewRule(DefaultMaxLength)
	assert.NoError(t, rule.Validate("general"))

	err := rule.Validate("Bad Name")
	assert.True(t, errors.Is(err, ErrInvalidName))
	assert.Contains(t, err.Error(), "Bad Name")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "general", Normalize("  #general "))
	assert.Equal(t, "general", Normalize("general"))
	assert.Equal(t, "#general", Normalize("##general"))
	assert.Equal(t, "", Normalize("#"))
	assert.Equal(t, "General_1", Normalize("#General_1"))
}
