// Package cache provides an in-memory LRU+TTL cache for page analysis
// results, keyed by a fingerprint of the analysis input. One instance
// is shared across all pipeline workers for the process lifetime.
package cache
