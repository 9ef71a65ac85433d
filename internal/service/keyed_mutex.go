package service

import "sync"

const keyedMutexShards = 64

// keyedMutex serializes work per string key while leaving different keys
// mostly parallel. Sharded so the lock table itself never becomes a global
// bottleneck.
type keyedMutex struct {
	shards [keyedMutexShards]sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{}
}

func (m *keyedMutex) Lock(key string) func() {
	shard := &m.shards[shardFor(key)]
	shard.Lock()
	return shard.Unlock
}

func shardFor(key string) uint32 {
	// FNV-1a.
	const (
		offset = 2166136261
		prime  = 16777619
	)
	h := uint32(offset)
	for _, b := range []byte(key) {
		h ^= uint32(b)
		h *= prime
	}
	return h % keyedMutexShards
}
