package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordRPC(t *testing.T) {
	m := NewMetrics("hwlock")

	m.RecordRPC("getSlot", 10*time.Millisecond, nil)
	m.RecordRPC("getSlot", 10*time.Millisecond, nil)
	m.RecordRPC("sendTransaction", 10*time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(m.RPCRequests.WithLabelValues("getSlot", "ok")); got != 2 {
		t.Errorf("getSlot ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RPCRequests.WithLabelValues("sendTransaction", "error")); got != 1 {
		t.Errorf("sendTransaction error = %v, want 1", got)
	}
}

func TestMetrics_RecordInvocation(t *testing.T) {
	m := NewMetrics("hwlock")
	m.RecordInvocation("initialize", "SUCCESS")

	if got := testutil.ToFloat64(m.Invocations.WithLabelValues("initialize", "SUCCESS")); got != 1 {
		t.Errorf("invocations = %v, want 1", got)
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Each instance owns a registry, so creating two must not panic
	m1 := NewMetrics("hwlock")
	m2 := NewMetrics("hwlock")
	if m1.Registry() == m2.Registry() {
		t.Error("expected distinct registries")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRPC("getSlot", time.Millisecond, nil)
	m.RecordInvocation("initialize", "FAILED")
	m.RecordConfirmation(time.Second)
	m.RecordStageDuration("SEND", time.Second)
	if m.IsRunning() {
		t.Error("nil metrics should not be running")
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("Stop() on nil = %v", err)
	}
}
