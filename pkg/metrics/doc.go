/*
Package metrics defines the agent's Prometheus metrics.

Counters and gauges cover the two data paths (request relay and push
delivery), the correlation registries, and session lifecycle. Metrics are
registered at package init and served over HTTP when a metrics address is
configured.
*/
package metrics
