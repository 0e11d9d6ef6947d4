// Package memory provides the low-level recycling primitives used by the
// matching core. FreeList backs the single-owner pools of tree nodes, orders
// and buckets; ChainPool is the one pool shared between goroutines and holds
// pre-allocated event chains; RetireRing hands finished work from the engine
// goroutine to a single consumer.
//
// The memory package is dependency-free.
package memory
