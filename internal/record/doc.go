// Package record implements the 8-byte record header, its latch-free
// reader/writer lock and the byte layouts of records in the log.
//
// A record is a header word followed by its payload:
//
//	[header 8B][payload ...][padding to 8B]
//
// The header packs a 48-bit backward link, a 5-bit shared lock count, the
// exclusive lock bit, the tombstone/valid/stub/sealed/dirty flags and a 5-bit
// checkpoint version into one machine word. Every mutation of a published
// header is a single atomic operation on that word.
//
// # Locking
//
// Writers set the exclusive bit first, which blocks new readers, and then wait
// for the existing shared holders to drain. The Try variants are bounded and
// leave nothing behind on failure. Unlocking a lock that is not held is
// undefined; building with the latchkv_debug tag turns it into a panic.
package record
