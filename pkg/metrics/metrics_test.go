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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpProtect, "test", StatusSuccess))

	RecordOperation(OpProtect, "test", StatusSuccess, 0.01)

	after := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpProtect, "test", StatusSuccess))
	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}

func TestRecordError(t *testing.T) {
	before := testutil.ToFloat64(ErrorsTotal.WithLabelValues(OpUnprotect, "test", "decryption_failed"))

	RecordError(OpUnprotect, "test", "decryption_failed")

	after := testutil.ToFloat64(ErrorsTotal.WithLabelValues(OpUnprotect, "test", "decryption_failed"))
	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}

func TestRecordPrompt(t *testing.T) {
	before := testutil.ToFloat64(PromptsTotal.WithLabelValues("test", OutcomeCancelled))

	RecordPrompt("test", OutcomeCancelled)

	after := testutil.ToFloat64(PromptsTotal.WithLabelValues("test", OutcomeCancelled))
	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}

func TestDisabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	before := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpProtect, "disabled", StatusError))
	RecordOperation(OpProtect, "disabled", StatusError, 0.01)
	after := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpProtect, "disabled", StatusError))

	if after != before {
		t.Errorf("counter moved while metrics disabled: %v -> %v", before, after)
	}
}
