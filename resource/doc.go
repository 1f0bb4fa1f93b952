// Package resource provides the handle table behind section resources.
//
// Resources are opaque handles representing host-side values that sandboxed
// plugins hold and pass back to the host. The plugin never sees host memory;
// it only sees a Handle, and every host operation looks the value up again.
//
// # Resource Lifecycle
//
// A value enters the table through Insert and leaves it exactly once:
//
//	Take - ownership moves to the caller (attach under a parent, return as root)
//	Drop - explicit destruction
//	Close - the whole table is discarded
//
// # Handle Table
//
// Table maps generation-tagged handles to Go values:
//
//	table := resource.NewTable[*Node](resource.WithLimit(1024))
//
//	// Insert a value, get a handle
//	h, err := table.Insert(node)
//
//	// Retrieve value by handle
//	node, ok := table.Get(h)
//
//	// Remove and get value (for ownership transfer)
//	node, ok = table.Take(h)
//
// A handle packs a slot index and the slot's generation. Freeing a slot bumps
// its generation, so a stale handle never resolves to a newer value that reuses
// the slot. A slot whose generation is exhausted is retired instead of reused.
// Handle 0 is never valid.
//
// # Observers
//
// Register observers to track resource lifecycle events:
//
//	table.Subscribe(observer)
//
// Observers receive EventCreated, EventTaken and EventDropped.
//
// # Thread Safety
//
// A Table belongs to one execution context and is NOT safe for concurrent use.
package resource
