// Package metrics provides build metrics for pagesmith.
//
// Components receive a Recorder and default to NoopRecorder, so metrics
// collection needs no nil checks:
//
//	p := pipeline.New(cfg) // NoopRecorder
//	p.WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// PrometheusRecorder registers its collectors on a caller-supplied registry.
// The registry is exposed over HTTP with HTTPHandler (serve command) or
// written in the node_exporter textfile format with WriteTextfile (build
// command, --metrics-file).
package metrics
