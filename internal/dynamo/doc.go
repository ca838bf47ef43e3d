// Package dynamo provides the shared primitives of the portal simulation.
//
// The package holds the small building blocks every other package leans on:
//
//   - [Vec3]: 3D vector used for cores, cameras and projected points
//   - [TrigTable]: precomputed sin/cos used by the per-step noise term
//   - [ParallelFor]: chunked fan-out over particle slots
//   - sentinel errors shared by the simulation, registry and lifecycle
//
// # Determinism
//
// Nothing in this package reads the clock or global random state. [ParallelFor]
// splits work into disjoint index ranges, so callers that only write their own
// slots get identical results regardless of the worker count.
package dynamo
