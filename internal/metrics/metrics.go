// Package metrics exports dispatch and LLM metrics to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dileep-u-k/function-gateway/internal/function"
)

const namespace = "function_gateway"

// Metrics implements function.Observer and records LLM usage.
type Metrics struct {
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	llmRequests      *prometheus.CounterVec
	llmTokens        *prometheus.CounterVec
}

var _ function.Observer = (*Metrics)(nil)

// New registers the collectors on reg, reusing ones already registered so
// several gateways can share a registry in tests.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Function calls processed, by resolution source and outcome.",
		}, []string{"source", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Latency of processing one function call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM generations, by model and status.",
		}, []string{"model", "status"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed, by model and kind (prompt or completion).",
		}, []string{"model", "kind"}),
	}

	var err error
	if m.dispatches, err = register(reg, m.dispatches); err != nil {
		return nil, err
	}
	if m.dispatchDuration, err = register(reg, m.dispatchDuration); err != nil {
		return nil, err
	}
	if m.llmRequests, err = register(reg, m.llmRequests); err != nil {
		return nil, err
	}
	if m.llmTokens, err = register(reg, m.llmTokens); err != nil {
		return nil, err
	}
	return m, nil
}

// MustNew is New that panics on registration errors.
func MustNew(reg prometheus.Registerer) *Metrics {
	m, err := New(reg)
	if err != nil {
		panic(err)
	}
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

// ObserveDispatch records one processed function call.
func (m *Metrics) ObserveDispatch(source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(source, outcome).Inc()
	m.dispatchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveGeneration records one LLM call and its token usage.
func (m *Metrics) ObserveGeneration(model string, promptTokens, completionTokens int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmRequests.WithLabelValues(model, status).Inc()
	if promptTokens > 0 {
		m.llmTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}
