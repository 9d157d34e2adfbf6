// Package registry holds the live set of devices and modules known to the
// serial bridge.
//
// The registry is memory-resident and rebuilt from device announcements after
// a restart. It is the only mutator of device identity, module enable state,
// module topics and module specs.
//
// # Model
//
//	Registry
//	  ├── bridge device (the bridge's own identity, never evicted)
//	  │     └── built-in modules: script, bandwidth, serial, mqtt, bridge
//	  └── devices (insertion ordered)
//	        └── modules (insertion ordered)
//
// Every device records the ID of the bridge module that introduced it (its
// dependency module). Serial-attached devices depend on the serial module.
// A module cannot be removed while any device depends on it.
//
// # Concurrency
//
// The registry is not safe for concurrent use. It is owned by the bridge event
// loop and every handler runs to completion before the next event is
// processed, so no locking is performed.
package registry
