// Package host implements the callback interface a sandboxed plugin uses
// during one parse call.
//
// A plugin may only pull characters and manipulate sections through opaque
// handles:
//
//	next                          -> next character, or end of stream
//	[constructor]section          -> new empty section, returns a handle
//	[method]section.add-field     -> append a value under a key
//	[method]section.add-section   -> move a child section under a key
//	[resource-drop]section        -> destroy a section
//
// State is the host-side implementation. It owns the resource table and the
// character stream of exactly one execution context; engines bind it to the
// sandbox through Callbacks and, for wazero, through the call context.
//
// Attaching a child takes it out of the table, so no node is ever reachable
// through two handles and the finished tree can be taken out in one step.
// The first protocol violation is recorded and reported by Fault.
package host
