// Package metrics exposes chat session observations to Prometheus.
//
// A Collector is handed to the session controller and updated from its
// loop. When metrics are enabled in config, Serve exposes the collector's
// private registry over HTTP; nothing is registered on the global default
// registry.
package metrics
