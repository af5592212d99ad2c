package mortgage

import "errors"

var (
	// ErrInvalidTrack is returned when a track's parameters are out of range
	// or inconsistent with its type.
	ErrInvalidTrack = errors.New("invalid mortgage track")

	// ErrInvalidFinancing is returned for malformed financing structures
	// (too many tracks, duplicate names, bad down payment).
	ErrInvalidFinancing = errors.New("invalid financing")

	// ErrRegulation is returned when the track mix violates the Bank of
	// Israel composition rules.
	ErrRegulation = errors.New("mortgage composition violates regulation")

	// ErrAllocationExceeded is returned when the tracks borrow more than the
	// loan amount implied by price and down payment.
	ErrAllocationExceeded = errors.New("track allocation exceeds loan amount")
)
