// Package snapshot persists the resting state of every order book so that
// recovery replays only the journal written after the snapshot.
//
// A snapshot is captured on the engine goroutine (Capture copies the books)
// and written from any goroutine. Files are gob encoded and sealed with a
// blake3 digest that Load verifies before anything is restored.
package snapshot
