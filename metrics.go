package tugraz

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type decisionMetrics struct {
	decisions *prometheus.CounterVec
}

func newDecisionMetrics(reg prometheus.Registerer) (*decisionMetrics, error) {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tugraz_authz_decisions_total",
		Help: "Authorization decisions by action and verdict.",
	}, []string{"action", "decision"})
	if err := reg.Register(decisions); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		decisions = existing
	}
	return &decisionMetrics{decisions: decisions}, nil
}

func (m *decisionMetrics) observe(d *Decision) {
	if m == nil {
		return
	}
	verdict := "deny"
	if d.Allowed {
		verdict = "allow"
	}
	m.decisions.WithLabelValues(d.Action, verdict).Inc()
}

// WithMetrics counts decisions on reg. Registering twice on the same
// registry shares the counter.
func WithMetrics(reg prometheus.Registerer) EngineOption {
	return func(e *Engine) error {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		m, err := newDecisionMetrics(reg)
		if err != nil {
			return err
		}
		e.metrics = m
		return nil
	}
}
