// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-bioseal.
//
// go-bioseal is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for seal
// operations. It exposes operation counters, duration histograms, and
// presence-prompt outcome counters so operators can observe how often
// protection operations succeed, fail, or are declined by the user.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all bioseal metrics
	Namespace = "bioseal"

	// Label names
	LabelOperation = "operation"
	LabelProvider  = "provider"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelOutcome   = "outcome"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpProtect   = "protect"
	OpUnprotect = "unprotect"
	OpObtain    = "obtain"
	OpSign      = "sign"

	// Prompt outcomes
	OutcomeConfirmed = "confirmed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

var (
	// OperationsTotal tracks the total number of seal operations by
	// type, credential provider, and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of seal operations by type, provider, and status",
		},
		[]string{LabelOperation, LabelProvider, LabelStatus},
	)

	// OperationDuration tracks the duration of seal operations in
	// seconds. Buckets extend to 120s because a signing operation can
	// block on the user-presence prompt.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of seal operations in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15, 30, 60, 120},
		},
		[]string{LabelOperation, LabelProvider},
	)

	// ErrorsTotal tracks errors by operation, provider, and error type.
	// Error types mirror the error taxonomy: "credential_unavailable",
	// "user_cancelled", "signing_failed", "invalid_signature",
	// "decryption_failed", "encryption_failed".
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation, provider, and error type",
		},
		[]string{LabelOperation, LabelProvider, LabelErrorType},
	)

	// PromptsTotal tracks user-presence prompt outcomes by provider.
	PromptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "prompts_total",
			Help:      "Total number of user-presence prompts by provider and outcome",
		},
		[]string{LabelProvider, LabelOutcome},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// SetEnabled enables or disables metrics collection at runtime.
func SetEnabled(on bool) {
	enabled.Store(on)
}

// Enabled reports whether metrics collection is enabled.
func Enabled() bool {
	return enabled.Load()
}

// RecordOperation records a seal operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	sealed, err := sealer.Protect(ctx, plaintext, challenge)
//	duration := time.Since(start).Seconds()
//	if err != nil {
//	    metrics.RecordOperation(metrics.OpProtect, "software", metrics.StatusError, duration)
//	} else {
//	    metrics.RecordOperation(metrics.OpProtect, "software", metrics.StatusSuccess, duration)
//	}
func RecordOperation(operation, provider, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, provider, status).Inc()
	OperationDuration.WithLabelValues(operation, provider).Observe(duration)
}

// RecordError records an error event with context about where it occurred.
func RecordError(operation, provider, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, provider, errorType).Inc()
}

// RecordPrompt records the outcome of a user-presence prompt.
func RecordPrompt(provider, outcome string) {
	if !enabled.Load() {
		return
	}
	PromptsTotal.WithLabelValues(provider, outcome).Inc()
}
