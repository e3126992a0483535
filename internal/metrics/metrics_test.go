package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCountsByResult(t *testing.T) {
	r, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	r.Observe("sign_transaction", nil)
	r.Observe("sign_transaction", nil)
	r.Observe("sign_transaction", errors.New("boom"))

	if got := testutil.ToFloat64(r.operations.WithLabelValues("sign_transaction", ResultOK)); got != 2 {
		t.Fatalf("expected 2 ok observations, got %v", got)
	}
	if got := testutil.ToFloat64(r.operations.WithLabelValues("sign_transaction", ResultError)); got != 1 {
		t.Fatalf("expected 1 error observation, got %v", got)
	}
}

func TestStoredAccountsGauge(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	r.SetStoredAccounts(3)
	if got := testutil.ToFloat64(r.accounts); got != 3 {
		t.Fatalf("expected gauge 3, got %v", got)
	}
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(reg)
	if err != nil {
		t.Fatalf("first recorder: %v", err)
	}
	second, err := New(reg)
	if err != nil {
		t.Fatalf("second recorder must reuse collectors: %v", err)
	}
	first.Observe("logout", nil)
	if got := testutil.ToFloat64(second.operations.WithLabelValues("logout", ResultOK)); got != 1 {
		t.Fatalf("expected shared counter, got %v", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.Observe("anything", nil)
	r.SetStoredAccounts(1)
}
