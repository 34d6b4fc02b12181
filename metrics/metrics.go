// Package metrics defines prometheus metric types and provides convenience
// methods to add accounting to various parts of tcpclass.
package metrics

import (
	"fmt"
	"log"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UnitsDecoded counts frames successfully decoded into TCP units.
	//
	// Provides metrics:
	//   tcpclass_units_decoded_total
	UnitsDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcpclass_units_decoded_total",
		Help: "The number of captured frames successfully decoded into TCP units.",
	})

	// DecodeErrors counts frames dropped during decode, by reason.
	//
	// Provides metrics:
	//   tcpclass_decode_errors_total{reason}
	// Example usage:
	//   metrics.DecodeErrors.WithLabelValues("truncated").Inc()
	DecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcpclass_decode_errors_total",
			Help: "The number of captured frames dropped during decode.",
		},
		[]string{"reason"})

	// ActiveFlows reports the number of flows currently tracked.
	//
	// Provides metrics:
	//   tcpclass_active_flows
	ActiveFlows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tcpclass_active_flows",
		Help: "The current number of flows with live trackers.",
	})

	// FlowsTotal counts flows created, by which unit started tracking.
	//
	// Provides metrics:
	//   tcpclass_flows_total{started_by}
	FlowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcpclass_flows_total",
			Help: "The number of flows created, broken down by the unit that started tracking.",
		},
		// "data" or "ack"
		[]string{"started_by"})

	// RateSamples counts the delivery rate samples produced across all flows.
	//
	// Provides metrics:
	//   tcpclass_rate_samples_total
	RateSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcpclass_rate_samples_total",
		Help: "The number of delivery rate samples produced.",
	})

	// Verdicts counts round trips classified, by verdict label.
	//
	// Provides metrics:
	//   tcpclass_verdicts_total{verdict}
	Verdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcpclass_verdicts_total",
			Help: "The number of round trips classified, broken down by verdict.",
		},
		[]string{"verdict"})

	// TimeoutRxmits counts retransmits attributed to a timeout.
	//
	// Provides metrics:
	//   tcpclass_timeout_rxmits_total
	TimeoutRxmits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcpclass_timeout_rxmits_total",
		Help: "The number of retransmits attributed to a timeout rather than fast recovery.",
	})

	// RoundtripDurationHistogram provides a histogram of round trip processing
	// time, from first data send to the ack that closes the flight.
	//
	// Provides metrics:
	//   tcpclass_roundtrip_duration_seconds_bucket{le}
	RoundtripDurationHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "tcpclass_roundtrip_duration_seconds",
			Help: "Round trip duration distribution.",
			Buckets: []float64{
				0.001, 0.003, 0.01, 0.03, 0.1, 0.2, 0.5, 1.0, 2.0,
				5.0, 10.0, 20.0, 50.0,
			},
		})

	// PanicCount counts the number of panics encountered while processing a capture.
	//
	// Provides metrics:
	//   tcpclass_panic_count{source}
	PanicCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcpclass_panic_count",
			Help: "Number of panics encountered.",
		},
		[]string{"source"})
)

// CountPanics updates the PanicCount metric, then repanics.
// It must be wrapped in a defer.
func CountPanics(r interface{}, tag string) {
	if r != nil {
		err, ok := r.(error)
		if !ok {
			log.Println("bad recovery conversion")
			err = fmt.Errorf("pkg: %v", r)
		}
		log.Println("Adding metrics for panic:", err)
		PanicCount.WithLabelValues(tag).Inc()
		debug.PrintStack()
		panic(r)
	}
}

// PanicToErr captures panics and converts them to errors. Use with care, as
// a panic may mean that state is corrupted and continuing to execute may
// result in undefined behavior.
// It must be wrapped in a defer.
func PanicToErr(err error, r interface{}, tag string) error {
	if r != nil {
		var ok bool
		err, ok = r.(error)
		if !ok {
			log.Println("bad recovery conversion")
			err = fmt.Errorf("pkg: %v", r)
		}
		log.Println("Recovered from panic:", err)
		PanicCount.WithLabelValues(tag).Inc()
		debug.PrintStack()
	}
	return err
}
