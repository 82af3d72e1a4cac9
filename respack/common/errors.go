package common

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error produced by the packaging core matches exactly one of
// these through errors.Is, and every one of them is fatal for the current build.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrValidation       = errors.New("validation error")
	ErrUniqueness       = errors.New("uniqueness violation")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrFormat           = errors.New("format error")
)

// NoSeq marks a ValidationError that is not tied to a record position.
const NoSeq = -1

// ConfigurationError reports mutually exclusive or missing options.
type ConfigurationError struct {
	Msg string
}

// NewConfigurationError constructs a ConfigurationError
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Msg)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ValidationError reports a malformed field in a declaration document or request.
type ValidationError struct {
	Source string // document path, empty when parsed from memory
	Seq    int64
	Field  string
	Msg    string
}

// NewValidationError constructs a ValidationError for the record at seq.
func NewValidationError(seq int64, field, format string, args ...any) *ValidationError {
	return &ValidationError{Seq: seq, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrValidation.Error())
	b.WriteString(": ")
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	if e.Seq != NoSeq {
		fmt.Fprintf(&b, "seq=%d ", e.Seq)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "%s ", e.Field)
	}
	b.WriteString(e.Msg)
	return b.String()
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UniquenessError reports a duplicate id or a duplicate (type, name) pair.
// Names holds every conflicting record name, first declaration first.
type UniquenessError struct {
	ID    int64
	Type  string
	Names []string
	Msg   string
}

func (e *UniquenessError) Error() string {
	quoted := make([]string, len(e.Names))
	for i, n := range e.Names {
		quoted[i] = fmt.Sprintf("'%s'", n)
	}
	return fmt.Sprintf("%s: %s (id 0x%08x, type %q, names %s)",
		ErrUniqueness, e.Msg, e.ID, e.Type, strings.Join(quoted, " and "))
}

func (e *UniquenessError) Is(target error) bool { return target == ErrUniqueness }

// CapacityError is returned when an id request lands beyond the namespace ceiling.
type CapacityError struct {
	ID      int64
	Ceiling int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: id 0x%08x exceeds ceiling 0x%08x", ErrCapacityExceeded, e.ID, e.Ceiling)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacityExceeded }

// FormatError reports a structural defect in a binary resource table.
type FormatError struct {
	Offset int64
	Msg    string
	Err    error
}

// NewFormatError constructs a FormatError at the given byte offset.
func NewFormatError(offset int64, err error, format string, args ...any) *FormatError {
	return &FormatError{Offset: offset, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at offset %d: %s: %v", ErrFormat, e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s at offset %d: %s", ErrFormat, e.Offset, e.Msg)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// Unwrap returns the wrapped err
func (e *FormatError) Unwrap() error { return e.Err }

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(message, args...), err)
}

// WithSource stamps the document path onto a ValidationError; other errors pass through.
func WithSource(err error, source string) error {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Source == "" {
		ve.Source = source
	}
	return err
}
