// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

import (
	"errors"
	"fmt"
)

var (
	// ErrShortFrame is returned when a frame is smaller than its kind requires
	ErrShortFrame = errors.New("frame too short")
	// ErrBadHeader is returned when a frame does not start with the expected header
	ErrBadHeader = errors.New("unexpected header")
	// ErrUnknownKind is returned for header pairs missing from the catalog
	ErrUnknownKind = errors.New("unknown packet kind")
	// ErrChecksum matches any *ChecksumError with errors.Is
	ErrChecksum = errors.New("checksum mismatch")
)

// ChecksumError reports a frame whose checksum byte does not match its payload
type ChecksumError struct {
	Kind     Kind
	Expected byte
	Received byte
}

// Error implements the error interface
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s checksum mismatch: expected 0x%02X, got 0x%02X", e.Kind, e.Expected, e.Received)
}

// Is lets errors.Is match ErrChecksum
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}
