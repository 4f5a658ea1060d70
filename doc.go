// Package hostselect picks service hosts out of a shared, heartbeat-driven registry.
//
// Two selections are provided on top of the store.Registry abstraction:
//
//   - resolver: returns the single active instance of a singleton-style service,
//     tolerating the short failover window where two replicas report as up.
//   - rotation: hands out workers of a pool in round-robin order. The rotation
//     position is a persisted cursor advanced only by compare-and-swap, so any
//     number of processes can assign work concurrently without a lock.
//
// Neither component keeps state in process memory between calls.
package hostselect
