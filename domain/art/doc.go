// Package art implements an adaptive radix tree keyed by 64-bit integers.
//
// The tree branches on one byte per level, from bits 56..63 at the top down
// to bits 0..7 at the leaves, and adapts each node to its fan-out (4, 16, 48
// or 256 children). Runs of single-child levels are never materialised: a
// node remembers the key it was created for and compares the bits above its
// own level instead (path compression). Keys are ordered as unsigned
// integers, so callers storing prices or ids use non-negative values.
//
// The tree is the price and order-id index of the matching core. Nodes are
// recycled through a NodePool owned by the same goroutine as the tree; none
// of the types in this package are safe for concurrent use.
package art
