// Package prometheus renders adminauth metrics in Prometheus text exposition format.
//
// [NewPrometheusExporter] accepts an [adminauth.Engine] and exposes an [http.Handler].
// Counter names are adminauth_*_total, the two latency histograms are
// adminauth_login_latency_seconds and adminauth_validate_latency_seconds, and the store
// gauges are adminauth_store_*.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
