// Package cache keeps recently read tensor frames in memory.
//
// LRU is bounded by its own byte capacity and, when given a resource
// controller, by the controller's global memory budget: an entry that the
// controller refuses is simply not cached.
package cache
