package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := TypeMismatch("input", "rain", "categorical")
	assert.Equal(t, "TYPE_MISMATCH: input state rain is not numeric (kind categorical) (variable=rain)", err.Error())

	err = StaleRead("runoff", 3, 7, "history window exceeded")
	assert.Contains(t, err.Error(), "STALE_READ")
	assert.Contains(t, err.Error(), "(transition=3)")
	assert.Contains(t, err.Error(), "(offset=7)")
}

func TestIs_ThroughWrapping(t *testing.T) {
	base := OutOfRange("transition", -1, 3)
	wrapped := fmt.Errorf("compute: %w", base)

	assert.True(t, IsOutOfRange(wrapped))
	assert.False(t, IsStaleRead(wrapped))
	assert.Equal(t, KindOutOfRange, KindOf(wrapped))

	var fe *Error
	assert.True(t, errors.As(wrapped, &fe))
	assert.Same(t, base, fe, "identity must survive wrapping")
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindConfiguration))
}

func TestConfiguration_NamesParameter(t *testing.T) {
	err := Configuration("multiplier", "lots", "int")
	assert.True(t, IsConfiguration(err))
	assert.Equal(t, "multiplier", err.Variable)
	assert.Contains(t, err.Error(), "lots (string)")
}
