// Package output defines the shared contract every output sink (csv,
// influxdb, mongo, relay) implements, so the pipeline's output task can
// drive any of them identically.
package output

import "github.com/alumet-dev/alumet/metrics"

// Context is passed to every Write call. It currently only exposes the
// metric registry, so a sink can resolve a MeasurementPoint's MetricID back
// to its descriptor (name, unit) when serializing.
type Context struct {
	Registry *metrics.Registry
}

// Blocking is implemented by sinks whose Write call may block on I/O (file,
// database, network). Each output task runs on its own goroutine, which
// blocks on Write, so a slow sink cannot stall the broadcast fan-out.
type Blocking interface {
	Write(buf *metrics.MeasurementBuffer, ctx *Context) error
}
