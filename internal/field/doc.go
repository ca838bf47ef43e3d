// Package field implements the particle arena and its force model.
//
// Particles live in flat buffers indexed by slot. A step depends only on
// the seed, the step index and the core list, so windows that agree on
// those agree on every particle.
package field
