// Package cache keeps decoded device segments in memory.
//
// The blob device stores the log as compressed segment blobs. Decoding a
// segment for every record read would dominate read latency, so decoded
// segments are kept in a byte-bounded LRU. Cached bytes count against the
// store's memory limit through the resource controller.
package cache
