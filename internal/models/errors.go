package models

import "errors"

var (
	// ErrAlreadyReleased is returned when tracking a movie that is already out
	ErrAlreadyReleased = errors.New("movie already released")

	// ErrAlreadyTracking is returned when the user already subscribed to the title
	ErrAlreadyTracking = errors.New("already tracking this title")

	// ErrNotFound is returned when a record or upstream title does not exist
	ErrNotFound = errors.New("not found")

	// ErrDeliveryRejected is returned by the messaging gateway when it refuses
	// a message as malformed (e.g. an unreachable image URL)
	ErrDeliveryRejected = errors.New("delivery rejected")
)
