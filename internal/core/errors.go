package core

import "errors"

var (
	ErrShiftAlreadyOpen = errors.New("shift already open")
	ErrShiftNotOpen     = errors.New("shift was not open")

	// The three /report refusals. Each maps to its own guidance message at
	// the transport layer; none of them changes any state.
	ErrShiftStillOpen = errors.New("shift must be closed first")
	ErrReportNotReady = errors.New("report delay has not elapsed")
	ErrStillOnLine    = errors.New("driver must go off line first")
)
