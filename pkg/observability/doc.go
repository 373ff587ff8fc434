/*
Package observability turns studio lifecycle hooks into Prometheus metrics and
structured log lines.
*/
package observability
