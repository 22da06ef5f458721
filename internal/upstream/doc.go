// Package upstream is the network side of the cache: a shared, tuned
// http.Client for the origin, hop-by-hop header filtering, and a Fetcher that
// turns a Request into a fully buffered Envelope. Buffering the whole body
// lets callers hand one copy to the client and an independent copy to the
// store without re-reading a stream.
package upstream
