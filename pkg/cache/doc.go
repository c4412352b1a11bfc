// Package cache provides a disk-backed response cache for Brightpearl
// API payloads.
//
// Each entry is one JSON file under the store directory. The file's
// modification time is the sole staleness signal: Get reports an entry
// as absent once its age exceeds the caller-supplied TTL, but never
// deletes the stale file. Entries disappear only through Invalidate or
// by being overwritten with a fresh Put.
//
// Filenames are namespaced with a short hash of the account reference so
// two clients configured for different Brightpearl accounts can share a
// cache directory without colliding.
//
// Writes are atomic (unique temp file + rename), so a reader never sees
// a half-written entry even if another caller is writing the same key.
package cache
