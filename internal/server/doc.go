// Package server hosts the Fiber HTTP service and the request middleware
// chain placed in front of the caching proxy. It assigns every request an
// X-Request-ID, recovers panics, keeps the /-/ diagnostics namespace out of
// the proxy path, and hands everything else to an injected ProxyHandler so
// tests can swap in fakes. Keep exports narrow and accept explicit
// dependencies.
package server
