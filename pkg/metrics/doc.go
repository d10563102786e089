// Package metrics defines the Prometheus metrics exported by the practice
// client and the local practice server.
package metrics
