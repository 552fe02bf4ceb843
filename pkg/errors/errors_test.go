package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsSentinelIdentity(t *testing.T) {
	cloned := Clone(ErrSlotUnavailable, "teacher is not available on this date")

	assert.Equal(t, "teacher is not available on this date", cloned.Message)
	assert.True(t, errors.Is(cloned, ErrSlotUnavailable))
	assert.False(t, errors.Is(cloned, ErrNotFound))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	wrapped := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed to list bookings")

	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, errors.Is(wrapped, ErrInternal))
	assert.Equal(t, "failed to list bookings: connection reset", wrapped.Error())
}

func TestFromErrorNormalises(t *testing.T) {
	typed := FromError(Clone(ErrForbidden, "not your booking"))
	require.NotNil(t, typed)
	assert.Equal(t, ErrForbidden.Code, typed.Code)

	plain := FromError(fmt.Errorf("boom"))
	require.NotNil(t, plain)
	assert.Equal(t, ErrInternal.Code, plain.Code)

	assert.Nil(t, FromError(nil))
}
