// Package metrics counts identity operations by outcome. A nil *Recorder is
// valid and records nothing.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Recorder struct {
	operations *prometheus.CounterVec
	accounts   prometheus.Gauge
}

// New registers the collectors on reg. Passing nil uses a private registry,
// which keeps repeated construction in tests from colliding.
func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "operations_total",
			Help:      "Identity operations by name and result.",
		}, []string{"operation", "result"}),
		accounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "identity",
			Name:      "stored_accounts",
			Help:      "Accounts currently held in the credential vault.",
		}),
	}
	for _, c := range []prometheus.Collector{r.operations, r.accounts} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, err
			}
			switch existing := already.ExistingCollector.(type) {
			case *prometheus.CounterVec:
				r.operations = existing
			case prometheus.Gauge:
				r.accounts = existing
			}
		}
	}
	return r, nil
}

// Observe counts one call of operation, classified by err.
func (r *Recorder) Observe(operation string, err error) {
	if r == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	r.operations.WithLabelValues(operation, result).Inc()
}

func (r *Recorder) SetStoredAccounts(n int) {
	if r == nil {
		return
	}
	r.accounts.Set(float64(n))
}
