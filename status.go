package latchkv

import "fmt"

// Status is the outcome of an operation.
type Status uint8

const (
	// StatusOK means the operation completed.
	StatusOK Status = iota
	// StatusNotFound means a Read found no live record for the key.
	StatusNotFound
	// StatusPending means the operation waits for device I/O or lock
	// contention; it finishes in CompletePending or through its Token.
	StatusPending
	// StatusError means the operation failed; the accompanying error says why.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "NOTFOUND"
	case StatusPending:
		return "PENDING"
	case StatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// OpKind identifies the operation behind a status.
type OpKind uint8

const (
	OpRead OpKind = iota
	OpUpsert
	OpRMW
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpUpsert:
		return "upsert"
	case OpRMW:
		return "rmw"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}
