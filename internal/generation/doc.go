// Package generation owns the versioned cache generations: the Manager opens
// the current generation and evicts stale ones, the Installer fills the
// current generation from the precache manifest, and Lifecycle ties the two
// to process startup (install first, activate only after a complete install).
package generation
