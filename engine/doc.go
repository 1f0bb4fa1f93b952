// Package engine runs untrusted parser plugins.
//
// An Engine compiles plugin source into an immutable Artifact. An Artifact
// can be instantiated any number of times; every Instance is bound to the
// host.Callbacks of exactly one parse and is discarded afterwards.
//
//	Engine.Compile     - decode, compile and check the plugin contract
//	Artifact.Instantiate - fresh sandbox bound to one callback set
//	Instance.Parse     - run the entry point, return the root handle
//
// Two engines are provided:
//
//	WazeroEngine - WebAssembly core modules importing "loara:dyparser/types"
//	GojaEngine   - JavaScript sources defining a global parse() function
//
// # WebAssembly contract
//
// Imports from host.ModuleName:
//
//	next                         () -> i32          char or -1 at end
//	[constructor]section         () -> i32          new section handle
//	[method]section.add-field    (i32 i32 i32 i32 i32)  self, key, value
//	[method]section.add-section  (i32 i32 i32 i32)      self, key, child
//	[resource-drop]section       (i32)
//
// Strings are passed as (ptr, len) pairs of UTF-8 in the exported "memory".
// The module exports parse: () -> i32. WASI preview1 imports are accepted
// when enabled; stdout and stderr go to the debug log.
//
// A callback that violates the protocol aborts the guest: there is no error
// value a plugin can observe or recover from.
//
// # Timeouts
//
// Parse honors context cancellation. wazero closes the module when the
// context is done; goja interrupts the VM.
package engine
