package redisstore

import "fmt"

// Redis key pattern helpers
//
// All keys and the change channel are namespaced by scope so that several
// independent sync universes can share one Redis server.
//
// Key pattern: multitab:{scope}:kv:{key}
// Channel pattern: multitab:{scope}:changes

// KVKey returns the Redis key holding the value of a store key.
// Pattern: multitab:{scope}:kv:{key}
func KVKey(scope, key string) string {
	return fmt.Sprintf("multitab:%s:kv:%s", scope, key)
}

// ChangesChannel returns the Pub/Sub channel carrying change notifications.
// Pattern: multitab:{scope}:changes
func ChangesChannel(scope string) string {
	return fmt.Sprintf("multitab:%s:changes", scope)
}
