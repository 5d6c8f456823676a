// Package metrics exports browser pool lifecycle events as Prometheus
// metrics. A Collector implements core.Hooks and owns a private registry.
package metrics
