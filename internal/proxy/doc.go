// Package proxy classifies every inbound request into a caching strategy and
// serves it from the current cache generation, the origin, or both.
//
// Four strategies exist: Excluded (straight to the origin, never stored),
// Audio (byte-range serving out of the full cached object), Navigation
// (network first, cache fallback) and CacheFirst (cache first, network
// fallback). The Engine implements the strategies against an
// upstream.Fetcher and a cache.Handle; the Forwarder is the Fiber-facing
// glue that builds requests, dispatches them and writes envelopes back.
package proxy
