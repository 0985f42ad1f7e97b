/*
Package ports defines the driven ports (interfaces) for the Arbor engine.

These interfaces decouple the core logic from external implementations,
allowing the engine to work with various storage backends and messaging
platforms.

# Key Interfaces

  - Store: persistence for blocks, users, sessions, params, traces and modules.
  - Connector: the outbound messaging contract, implemented per platform.
  - DistributedLocker: distributed locking for multi-replica session serialization.
*/
package ports
