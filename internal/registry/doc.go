// Package registry provides the Device Registry for NetDash Core.
//
// The registry is the persisted mapping from device identifier (MAC
// address) to user-assigned metadata: category, sensitivity, and
// connectivity status. It is the read/write unit for every other
// component: the exposure engine derives the level from stored statuses,
// the API surfaces enriched client views, and rebalancing writes new
// statuses back through it.
//
// # Storage model
//
// The whole mapping lives in a single JSON file (sorted keys, indented
// for diff-friendliness). Every mutation rewrites the file atomically via
// write-temp-fsync-rename, so a crash never leaves partial state behind.
// Records are created implicitly on first metadata write for a MAC and
// are never deleted.
//
// A missing, unreadable, or corrupt file loads as an empty store: the
// dashboard stays available even when durable metadata is lost.
//
// # Usage
//
//	store := registry.Open(cfg.Registry.Path)
//	store.SetLogger(log.With("component", "registry"))
//
//	rec, err := store.SetAttributes("AA:BB:CC:DD:EE:FF", registry.Attributes{
//	    Category: ptr("Smart Speaker"),
//	})
//
//	clients := store.Enrich(scanner.List(ctx))
//
// MAC matching is case-insensitive; keys are normalised to lowercase.
package registry
