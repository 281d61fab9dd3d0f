// Package metrics holds the Prometheus collectors for split, settlement and
// RPC activity.
package metrics

import (
	"errors"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mmynk/splitledger/internal/calculator"
)

const namespace = "splitledger"

// Collectors groups every metric the server exports.
// A nil *Collectors is valid and records nothing.
type Collectors struct {
	SplitsCalculated *prometheus.CounterVec
	SplitFailures    *prometheus.CounterVec
	SettlementEdges  prometheus.Histogram
	RPCDuration      *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		SplitsCalculated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "split",
			Name:      "calculated_total",
			Help:      "Total splits calculated, by policy.",
		}, []string{"policy"}),
		SplitFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "split",
			Name:      "failures_total",
			Help:      "Total rejected splits and ledgers, by error kind.",
		}, []string{"kind"}),
		SettlementEdges: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "edges",
			Help:      "Suggested transfers per netting run.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		}),
		RPCDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "RPC latency, by procedure and result code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
	}
}

// ObserveSplit counts a calculated split, or a failure by its error kind.
func (c *Collectors) ObserveSplit(policy calculator.Kind, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.ObserveFailure(err)
		return
	}
	c.SplitsCalculated.WithLabelValues(string(policy)).Inc()
}

// ObserveFailure counts a core error by kind. Other errors count as "other".
func (c *Collectors) ObserveFailure(err error) {
	if c == nil || err == nil {
		return
	}
	kind := "other"
	var se calculator.SplitError
	if errors.As(err, &se) {
		kind = string(se.Kind)
	}
	c.SplitFailures.WithLabelValues(kind).Inc()
}

// ObserveSettlement records the number of edges one netting run produced.
func (c *Collectors) ObserveSettlement(edges int) {
	if c == nil {
		return
	}
	c.SettlementEdges.Observe(float64(edges))
}

// ObserveRPC records one RPC. A nil err is recorded with code "ok".
func (c *Collectors) ObserveRPC(procedure string, err error, d time.Duration) {
	if c == nil {
		return
	}
	code := "ok"
	if err != nil {
		code = connect.CodeOf(err).String()
	}
	c.RPCDuration.WithLabelValues(procedure, code).Observe(d.Seconds())
}
