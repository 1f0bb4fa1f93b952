// Package dyparser parses configuration files through sandboxed plugins.
//
// A plugin is a WebAssembly module or a JavaScript file that reads the
// configuration text one character at a time and builds a tree of
// sections through host callbacks. The host owns every section; the
// plugin only ever sees opaque handles, so a faulty plugin can neither
// corrupt the result nor reach the host process.
//
// # Architecture Overview
//
//	dyparser/            ParseConfig convenience
//	├── runtime/         Loads plugins and runs parse sessions
//	├── engine/          wazero and goja sandboxes
//	├── host/            Host callbacks and the per-session state
//	├── resource/        Generation-tagged handle table
//	├── section/         MultiSection result tree
//	├── input/           Reading and decoding configuration text
//	├── discovery/       Locating installed plugins
//	├── config/          Settings from files and environment
//	├── metrics/         Prometheus metrics for parses and host calls
//	└── errors/          Structured error types
//
// # Quick Start
//
//	tree, err := dyparser.ParseConfig(ctx, "app.ini", dyparser.WithPlugin("ini"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	host, _ := tree.Find("server")
//
// For repeated parses create a runtime once and reuse the loaded plugin:
//
//	rt, err := runtime.New(ctx, runtime.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	p, err := rt.LoadPlugin(ctx, "ini")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close(ctx)
//
//	tree, err := p.ParseFile(ctx, "app.ini")
//
// # Plugin Contract
//
// A wasm plugin imports its callbacks from the "loara:dyparser/types"
// module and exports "parse" (or "loara:dyparser/parser#parse-stream")
// with type () -> i32, returning the handle of the root section. A
// JavaScript plugin defines a global parse() function and uses the
// next() and section.* globals.
//
// Any protocol violation (an unknown handle, attaching a section to itself,
// using a section after attaching it) aborts the plugin. No partial tree
// is ever returned.
//
// # Thread Safety
//
// Runtime and Plugin are safe for concurrent use. Each parse runs in its
// own Session with a fresh sandbox instance and resource table.
package dyparser
