package store

import "time"

// Store is the shared keyspace. Implementations must be safe for
// concurrent use by every connection.
type Store interface {
	// Get returns a copy of the live value for key.
	Get(key string) ([]byte, bool)
	// Set stores value under key, replacing any previous value and TTL.
	// A ttl <= 0 means the key never expires.
	Set(key string, value []byte, ttl time.Duration)
	// Len reports the number of unexpired keys.
	Len() int
	// RemoveExpired drops every expired key and returns how many went.
	RemoveExpired() int
}
