/*
Package observability exposes engine activity as Prometheus metrics.

It registers counters and histograms for turns, outbound chunks, script
execution and go_to hops, and binds them to the engine's lifecycle hooks.
*/
package observability
