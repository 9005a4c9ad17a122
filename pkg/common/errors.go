package common

import (
	"context"
	"errors"
)

func AsError[T error](err error) (T, bool) {
	var target T
	return target, errors.As(err, &target)
}

// IsCancellation reports whether err is caused by a cancelled or expired
// context.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
