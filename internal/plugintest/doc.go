// Package plugintest builds small WebAssembly plugins for tests.
//
// Module is a minimal core-module assembler covering the instructions the
// canned plugins need. The canned plugins exercise the host protocol, both
// well-behaved and deliberately faulty.
package plugintest
