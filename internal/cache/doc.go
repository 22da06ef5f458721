// Package cache defines the generation-scoped blob store that keeps complete
// origin representations keyed by normalized request URL. A Store hands out
// Handles bound to one named generation; each Handle exposes read/write
// primitives with single-key atomicity (temp file + rename on disk, a single
// upsert in sqlite) so readers only ever observe complete objects. Partial
// content is never persisted here; byte ranges are derived on read by the
// proxy layer.
package cache
