// Package syncutil contains small concurrency primitives shared across the API.
package syncutil

import (
	"hash/fnv"
	"sync"
)

// ShardedMutex serializes work per string key using a fixed pool of mutexes.
// Memory stays bounded no matter how many account ids pass through, at the
// cost of occasional false sharing when two keys land on the same shard.
type ShardedMutex struct {
	shards [256]sync.Mutex
}

// Lock blocks until the shard for key is held and returns its unlock function.
func (s *ShardedMutex) Lock(key string) func() {
	mu := s.shard(key)
	mu.Lock()
	return mu.Unlock
}

func (s *ShardedMutex) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%256]
}
