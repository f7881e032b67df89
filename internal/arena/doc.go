// Package arena provides an off-heap memory allocator for pointer-linked
// node structures such as graphs and trees.
//
// The arena allocator eliminates GC pressure by using mmap-backed memory.
// It provides stable addresses for nodes, enabling lock-free concurrent access.
//
// # Features
//
//   - Off-heap allocation via mmap (no GC pressure)
//   - 1 MiB default chunk size for cache locality
//   - Generation tracking for safe memory reclamation
//   - ~4.2ns per allocation
//
// # Safety
//
// The allocation methods return errors instead of panicking. Get panics on an
// offset whose chunk is not live; GetSafe returns nil for a Ref from an
// earlier generation.
package arena
