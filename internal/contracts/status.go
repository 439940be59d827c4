// Package contracts provides shared interfaces and utilities to avoid circular dependencies.
// This package can be imported by any internal package and should have minimal dependencies.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, standard library
//   - MUST NOT import: any other internal packages
package contracts

import "github.com/mrz1836/cortex/internal/constants"

// attentionStatuses defines task statuses an operator should look at.
//
//nolint:gochecknoglobals // Read-only lookup table for attention status checks
var attentionStatuses = map[constants.TaskStatus]bool{
	constants.TaskStatusFailed:   true,
	constants.TaskStatusDeferred: true,
}

// IsAttentionStatus returns true if the status needs an operator. Deferred
// tasks wait for human input and failed ones for a look at the logs. These are
// highlighted and sorted to the top of status lists.
func IsAttentionStatus(status constants.TaskStatus) bool {
	return attentionStatuses[status]
}
