package series

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPeriod is returned when a window or smoother is built with period <= 0.
	ErrInvalidPeriod = errors.New("period must be positive")

	// ErrWeightLength is returned when a weight vector does not match its period.
	ErrWeightLength = errors.New("weight vector length does not match period")

	// ErrUnknownSmoothing is returned for a Smoothing outside the closed set.
	ErrUnknownSmoothing = errors.New("unknown smoothing")
)

// ShapeError is the panic value raised when two sequences of different
// lengths meet in a binary operation.
type ShapeError struct {
	Op    string
	Left  int
	Right int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("series: %s on mismatched lengths %d and %d", e.Op, e.Left, e.Right)
}

func mustAlign(op string, left, right int) {
	if left != right {
		panic(&ShapeError{Op: op, Left: left, Right: right})
	}
}
