package common

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{NewConfigurationError("start id and %s together", "id_defined.json"), ErrConfiguration},
		{NewValidationError(3, "id", "not a hex string"), ErrValidation},
		{&UniquenessError{ID: 0x01000001, Names: []string{"a", "b"}}, ErrUniqueness},
		{&CapacityError{ID: 0x01000010, Ceiling: 0x0100000f}, ErrCapacityExceeded},
		{NewFormatError(12, io.ErrUnexpectedEOF, "short read"), ErrFormat},
	}
	kinds := []error{ErrConfiguration, ErrValidation, ErrUniqueness, ErrCapacityExceeded, ErrFormat}

	for _, tc := range cases {
		wrapped := WrapError(tc.err, "building %s", "entry")
		for _, k := range kinds {
			assert.Equal(t, k == tc.kind, errors.Is(wrapped, k), "%v vs %v", tc.err, k)
		}
	}
}

func TestUniquenessErrorNamesBothRecords(t *testing.T) {
	err := &UniquenessError{ID: 0x01000001, Type: "string", Names: []string{"app_name", "other"}, Msg: "same id"}
	assert.Contains(t, err.Error(), "'app_name' and 'other'")
	assert.Contains(t, err.Error(), "0x01000001")
}

func TestFormatErrorUnwrap(t *testing.T) {
	err := NewFormatError(4, io.ErrUnexpectedEOF, "reading header")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "offset 4")
}

func TestWithSource(t *testing.T) {
	err := WithSource(NewValidationError(0, "type", "empty"), "base/element/id_defined.json")
	assert.Contains(t, err.Error(), "base/element/id_defined.json: seq=0 type empty")

	other := errors.New("plain")
	assert.Same(t, other, WithSource(other, "x"))
	assert.Nil(t, WrapError(nil, "nothing"))
}
