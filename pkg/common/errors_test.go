package common

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

type someError struct{ code int }

func (this someError) Error() string {
	return fmt.Sprintf("some error %d", this.code)
}

func TestAsError(t *testing.T) {
	actual, ok := AsError[someError](fmt.Errorf("wrapped: %w", someError{42}))
	assert.True(t, ok)
	assert.Equal(t, 42, actual.code)

	_, ok = AsError[someError](io.EOF)
	assert.False(t, ok)
}

func TestIsCancellation(t *testing.T) {
	assert.True(t, IsCancellation(context.Canceled))
	assert.True(t, IsCancellation(fmt.Errorf("foo: %w", context.DeadlineExceeded)))
	assert.False(t, IsCancellation(io.EOF))
	assert.False(t, IsCancellation(nil))
}
