// Package metrics records parse activity as Prometheus metrics.
//
// Metrics implements host.Tracer, resource.Observer and the runtime
// recorder, so one value can be handed to runtime.WithRecorder:
//
//	dyparser_parses_total{plugin,outcome}
//	dyparser_parse_duration_seconds{plugin}
//	dyparser_host_calls_total{op}
//	dyparser_host_call_errors_total{op,kind}
//	dyparser_sections_live
//	dyparser_sections_leaked_total
//
// Snapshot returns the same figures as plain numbers for display.
package metrics
