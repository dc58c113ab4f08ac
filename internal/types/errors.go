package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for pattern compilation and score rule commands.
var (
	// ErrEmptyPattern indicates the pattern text contained no terms.
	ErrEmptyPattern = errors.New("empty pattern")

	// ErrSyntax indicates an unrecognized token where a term was expected.
	ErrSyntax = errors.New("error in pattern")

	// ErrMissingParameter indicates a leaf that takes an argument had none.
	ErrMissingParameter = errors.New("missing parameter")

	// ErrMissingPattern indicates a marker character with no letter after it.
	ErrMissingPattern = errors.New("missing pattern")

	// ErrInvalidNumber indicates a malformed range bound or score value.
	ErrInvalidNumber = errors.New("invalid number")

	// ErrInvalidDate indicates a malformed absolute or relative date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidRegex indicates a leaf argument that does not compile as a regex.
	ErrInvalidRegex = errors.New("invalid regular expression")

	// ErrInvalidModifier indicates an unknown leaf letter.
	ErrInvalidModifier = errors.New("invalid pattern modifier")

	// ErrModifierNotAllowed indicates a leaf outside the caller's allowed classes.
	ErrModifierNotAllowed = errors.New("not supported in this mode")

	// ErrMismatchedParen indicates an opening parenthesis without its partner.
	ErrMismatchedParen = errors.New("mismatched parenthesis")

	// ErrTooFewArguments indicates a command received fewer arguments than it needs.
	ErrTooFewArguments = errors.New("too few arguments")

	// ErrTooManyArguments indicates a command received trailing arguments.
	ErrTooManyArguments = errors.New("too many arguments")

	// ErrUnknownCommand indicates a configuration line with an unknown verb.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNoBody indicates a record has no loadable message content.
	ErrNoBody = errors.New("message body not available")
)

// ParseError describes a pattern compilation failure.
// Kind is one of the sentinels above; At holds the offending text, which for
// ErrSyntax is the unparsed remainder of the input.
type ParseError struct {
	Kind error
	At   string
}

// Error renders the message in the form users see on the command line.
func (e *ParseError) Error() string {
	switch e.Kind {
	case ErrEmptyPattern, ErrMissingParameter:
		return e.Kind.Error()
	case ErrSyntax:
		return fmt.Sprintf("error in pattern at: %s", e.At)
	case ErrInvalidModifier, ErrModifierNotAllowed:
		return fmt.Sprintf("%s: %s", e.At, e.Kind)
	}
	if e.At == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.At)
}

// Unwrap exposes Kind to errors.Is.
func (e *ParseError) Unwrap() error {
	return e.Kind
}

// NewParseError builds a ParseError.
func NewParseError(kind error, at string) *ParseError {
	return &ParseError{Kind: kind, At: at}
}
