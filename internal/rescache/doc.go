// Package rescache is a capacity-bounded cache of lazily created external
// resources.
//
// A Cache maps a normalised key to a value produced by a Creator. On top
// of LRU lookup it guarantees:
//
//   - Concurrent misses for one key share a single creation.
//   - Creations run one at a time, in request order, from a single worker
//     goroutine, with a minimum delay between consecutive creations.
//   - When the cache is full, the least recently used entry is released
//     through the Creator before the next creation.
//
// A failed creation is reported to every waiter on that key and is not
// cached, so a later Get retries it.
package rescache
