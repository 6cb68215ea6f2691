// Package hash provides the two hash functions of the engine.
//
// Keys are hashed with xxHash64 to pick an index bucket. Blobs written by
// the blob device are checksummed with CRC32-Castagnoli, which Go computes
// with hardware instructions where available.
package hash
