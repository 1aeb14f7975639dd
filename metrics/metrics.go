// Package metrics records vendor API calls as Prometheus metrics.
//
// The tools are short-lived, so instead of serving /metrics the registry is
// written to a node_exporter textfile when the process finishes.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mediakit"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// requestDuration is a histogram of vendor API call duration.
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of vendor API calls in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "operation"},
	)

	// requestsTotal is a counter of vendor API calls.
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of vendor API calls",
		},
		[]string{"provider", "operation", "status"},
	)

	// bytesTotal counts request and response payload bytes.
	bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Total payload bytes exchanged with vendor APIs",
		},
		[]string{"provider", "direction"}, // direction: sent, received
	)

	// filesWrittenTotal counts output files written to disk.
	filesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Total number of output files written",
		},
		[]string{"kind"}, // kind: image, input, index, metadata, audio
	)

	allMetrics = []prometheus.Collector{
		requestDuration,
		requestsTotal,
		bytesTotal,
		filesWrittenTotal,
	}

	registry = newRegistry()
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(allMetrics...)
	return reg
}

// Registry returns the registry holding every mediakit metric.
func Registry() *prometheus.Registry {
	return registry
}

// RecordRequest records one vendor API call.
func RecordRequest(provider, operation string, err error, d time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	requestDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
	requestsTotal.WithLabelValues(provider, operation, status).Inc()
}

// RecordBytes records payload bytes sent or received.
func RecordBytes(provider, direction string, n int) {
	if n > 0 {
		bytesTotal.WithLabelValues(provider, direction).Add(float64(n))
	}
}

// File kinds recorded by RecordFileWritten.
const (
	FileImage    = "image"
	FileInput    = "input"
	FileIndex    = "index"
	FileMetadata = "metadata"
	FileAudio    = "audio"
)

// RecordFileWritten records an output file of the given kind.
func RecordFileWritten(kind string) {
	filesWrittenTotal.WithLabelValues(kind).Inc()
}

// WriteTextfile writes the registry in text exposition format to path,
// atomically, for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
