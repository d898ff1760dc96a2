// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package strip

import (
	"github.com/pkg/errors"
)

// Errors returned by strip operations. Returned errors may carry additional
// context; use errors.Cause to compare them against these values.
var (
	// ErrOutOfRange is returned when an index or range falls outside of the
	// strip.
	ErrOutOfRange = errors.New("out of range")
	// ErrTimeout is returned when the previous transmission did not complete in
	// time.
	ErrTimeout = errors.New("timed out waiting for transmission")
	// ErrInitFailure is returned when a strip's hardware resources could not be
	// acquired. It is not retryable.
	ErrInitFailure = errors.New("initialization failed")
	// ErrNotSupported is returned when an operation is not supported by the
	// strip's LED family.
	ErrNotSupported = errors.New("not supported")
	// ErrInvalidState is returned when an operation is not valid in the current
	// state.
	ErrInvalidState = errors.New("invalid state")
)

// Is returns true if err was caused by target.
func Is(err, target error) bool { return err != nil && errors.Cause(err) == target }
