package hysteresis

import (
	"errors"
	"fmt"
)

// ErrEventIndexOutOfRange is returned by OverrideEvent when index does
// not address an existing timeline entry.
var ErrEventIndexOutOfRange = errors.New("event index out of range")

func errOutOfRange(index, length int) error {
	return fmt.Errorf("%w: index %d, have %d events", ErrEventIndexOutOfRange, index, length)
}
