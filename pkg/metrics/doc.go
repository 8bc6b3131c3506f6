// Package metrics defines the Prometheus metrics recorded for a setup run:
// per-phase duration and outcome, grant usage and installer cache lookups.
// A run is short lived, so metrics are pushed to a Pushgateway instead of
// being scraped.
package metrics
