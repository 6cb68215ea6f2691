// Package mmap maps whole files read-only into memory.
//
// The local blob store serves segment blobs from mappings, so the blob
// device can decode a segment without copying it through a read buffer.
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix uses mmap(2) and madvise(2); Windows uses MapViewOfFile and ignores
// access hints.
package mmap
