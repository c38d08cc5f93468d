package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fxpilot",
			Subsystem: "predictor",
			Name:      "predictions_total",
			Help:      "Predictions emitted per instrument",
		},
		[]string{"pair"},
	)

	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fxpilot",
			Subsystem: "trading",
			Name:      "trades_total",
			Help:      "Executed trades by instrument and action",
		},
		[]string{"pair", "action"},
	)

	skipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fxpilot",
			Subsystem: "trading",
			Name:      "skips_total",
			Help:      "Trades skipped by policy, with reason",
		},
		[]string{"pair", "reason"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fxpilot",
			Subsystem: "trading",
			Name:      "errors_total",
			Help:      "Errors by kind",
		},
		[]string{"kind"},
	)

	opLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fxpilot",
			Subsystem: "trading",
			Name:      "operation_seconds",
			Help:      "Latency of pipeline operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	portfolioValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fxpilot",
			Subsystem: "trading",
			Name:      "portfolio_value",
			Help:      "Portfolio value in the base currency after the last step",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			predictionsTotal, tradesTotal, skipsTotal,
			errorsTotal, opLatency, portfolioValue,
		)
	})
}

// Recorder implements the domain metrics sink on the registered collectors.
type Recorder struct{}

func NewRecorder() *Recorder {
	Register()
	return &Recorder{}
}

func (Recorder) RecordPrediction(pair string) {
	predictionsTotal.WithLabelValues(pair).Inc()
}

func (Recorder) RecordTrade(pair, action string) {
	tradesTotal.WithLabelValues(pair, action).Inc()
}

func (Recorder) RecordSkip(pair, reason string) {
	skipsTotal.WithLabelValues(pair, reason).Inc()
}

func (Recorder) RecordError(kind string) {
	errorsTotal.WithLabelValues(kind).Inc()
}

func (Recorder) RecordLatency(op string, seconds float64) {
	opLatency.WithLabelValues(op).Observe(seconds)
}

func (Recorder) RecordPortfolioValue(v float64) {
	portfolioValue.Set(v)
}
