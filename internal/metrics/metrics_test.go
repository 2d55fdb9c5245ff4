// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCountsRequestsByVerb(t *testing.T) {
	m := New()

	m.Observe("FD_MKDIR", 0, 5*time.Millisecond)
	m.Observe("FD_MKDIR", 0, 5*time.Millisecond)
	m.Observe("FD_UNLINK", 2, time.Millisecond)

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("FD_MKDIR")); got != 2 {
		t.Errorf("FD_MKDIR requests_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requestErrors.WithLabelValues("FD_UNLINK", "2")); got != 1 {
		t.Errorf("FD_UNLINK/2 request_errors_total = %v, want 1", got)
	}
}

func TestObserveSkipsErrorCounterOnSuccess(t *testing.T) {
	m := New()
	m.Observe("QH_STATS", 0, time.Millisecond)

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() == "taggablefs_dispatcher_request_errors_total" && len(family.Metric) != 0 {
			t.Errorf("expected no error samples after a successful observation, got %d", len(family.Metric))
		}
	}
}
