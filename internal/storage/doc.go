// Package storage persists closed ring sessions (wakebell's usage
// statistics).
//
// Two drivers are provided behind the Store interface: a dependency-free
// JSONL file backend and a SQLite backend. Storage is optional; when the
// config omits it, Open returns (nil, nil) and the app skips recording.
package storage
