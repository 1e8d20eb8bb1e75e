// Package recordstore implements a durable, single-file mapping from string keys to
// JSON records with atomic read-modify-write.
//
// # Write discipline
//
// Every mutation runs the full load-mutate-persist sequence under one mutex per [Store]
// and, unless disabled, an advisory file lock (`<file>.lock`) shared with other processes.
// The new document is written to a temporary file in the same directory, synced, and
// renamed over the original, so a reader or a restarted process sees either the previous
// document or the new one, never a truncated file.
//
// Reads ([Store.Load], [Store.Get]) decode the file directly and do not take the write lock.
//
// # What this package must NOT do
//
//   - Know anything about the record schema; encoding is delegated to a [Codec].
//   - Create a document implicitly. A missing file is [ErrNotInitialized] until [Create] runs.
//   - Discard a document it cannot decode. Malformed content is [ErrCorrupt].
package recordstore
