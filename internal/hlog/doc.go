// Package hlog implements the hybrid log that stores all records.
//
// The log is one logical address space. Its newest pages live in a ring of
// in-memory frames; the tail part of that ring is mutable and the rest is
// read-only. A background flusher writes read-only pages to a device, and
// pages leaving the ring are read back from the device on demand.
//
// Writers pin a page (Allocate, EnterMutable) for as long as they touch its
// memory. ShiftReadOnly waits for those pins to drain before it hands the
// range to the flusher, so flushed pages never contain torn records.
package hlog
