// Package replicated implements cache.Cache on top of a Redis-protocol
// master with optional replicas.
//
// # Roles
//
// Writes (Put, Remove, Clear) go to the master connection; reads (Get, Len)
// go to the replica connection. Discovery fills the two roles:
//
//	replicating  master and first live replica are distinct; the replica is
//	             sent REPLICAOF <master>
//	standalone   master and replica are the same server (loopback spellings
//	             and DNS names are canonicalized before comparing), or no
//	             replica answered and the master serves reads too
//	promoted     master is down; the replica is sent REPLICAOF NO ONE and
//	             serves both roles
//	unavailable  nothing answered; every operation is a degraded no-op
//
// # Failure handling
//
// The client never returns backend errors through the cache.Cache methods.
// A failed operation is logged, reported to Metrics.Degraded, and triggers
// a rediscovery (coalesced across goroutines) before the call returns. The
// failed operation itself is not retried. Lookup, Store and Delete return a
// cache.Result carrying the Degraded flag and the error for callers that
// need to tell an outage from a miss.
//
// # Keys and values
//
// Keys are mapped with a keycodec.Encoding (identity hash by default) and
// values are serialized with JSON unless Options.Serializer says otherwise.
// Len and Clear act on the whole server database, not on a key namespace.
//
// # Usage
//
//	c := replicated.New[string, User]("redis-0:6379", []string{"redis-1:6379"}, replicated.Options{
//	    TTL:    time.Hour,
//	    Logger: logger,
//	})
//	defer c.Close()
//	c.Put("u:42", u)
//	u, ok := c.Get("u:42")
package replicated
