// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package health

import "time"

// Metrics exposes the current state of a circuit breaker for monitoring
// and operator visibility. All fields are point-in-time snapshots safe
// to serialize to JSON.
type Metrics struct {
	Name          string     `json:"name"`
	State         string     `json:"state"`
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	RetryAt       *time.Time `json:"retry_at,omitempty"`
	Available     bool       `json:"available"`
}
