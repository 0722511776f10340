package model

import "fmt"

// The three fatal failure classes the engines can surface. All of them abort
// the run; none is retried. Block and iteration identity are carried on the
// error so the caller can locate the offending input.

// InvalidPartitionError reports a malformed block partition or correlation
// matrix. It is detected at construction time, before any iteration runs.
type InvalidPartitionError struct {
	Block  int // offending block index, -1 when the problem is partition-wide
	Reason string
}

func (e *InvalidPartitionError) Error() string {
	if e.Block < 0 {
		return fmt.Sprintf("invalid partition: %s", e.Reason)
	}
	return fmt.Sprintf("invalid partition (block %d): %s", e.Block, e.Reason)
}

// PriorDegeneracyError reports a hyperparameter update that produced a
// non-positive or non-finite variance (or an invalid mixture weight).
type PriorDegeneracyError struct {
	Iter  int // iteration of the offending update, -1 before the first one
	Param string
	Value float64
}

func (e *PriorDegeneracyError) Error() string {
	return fmt.Sprintf("degenerate prior at iteration %d: %s=%g", e.Iter, e.Param, e.Value)
}

// NumericDivergenceError reports a non-finite effect value produced by a
// draw or update mid-run. The chain state is unrecoverable at that point, so
// any partial results are discarded.
type NumericDivergenceError struct {
	Iter    int
	Block   int
	Variant int
}

func (e *NumericDivergenceError) Error() string {
	return fmt.Sprintf("non-finite effect at iteration %d, block %d, variant %d",
		e.Iter, e.Block, e.Variant)
}
