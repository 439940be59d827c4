// Package testutil provides testing utilities for CORTEX.
//
// This package contains mock errors and test helpers used across test files.
// It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
var (
	// ErrMockStoreDown simulates a database outage.
	ErrMockStoreDown = errors.New("store down")

	// ErrMockDecision simulates a decision layer failure.
	ErrMockDecision = errors.New("decision layer error")

	// ErrMockHandler simulates an action handler failure.
	ErrMockHandler = errors.New("handler error")
)
