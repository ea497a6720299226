package cache

import "time"

// Store defines the interface for typed cache operations.
type Store[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	SetWithTTL(key string, value V, ttl time.Duration)
}

// DiskStore extends Store with a lookup that reports which tier answered.
type DiskStore[V any] interface {
	Store[V]
	Lookup(key string) (V, HitType)
}
