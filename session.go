package latchkv

import (
	"context"
	"errors"
	"runtime"
)

// Session issues operations against a store. A session belongs to one
// goroutine at a time; operations that go pending stay with the session
// until CompletePending finishes them.
type Session struct {
	s       *Store
	id      uint64
	logger  *Logger
	pending []*operation
	wake    chan struct{}
	closed  bool
}

// ID returns the session number, unique within the store.
func (sess *Session) ID() uint64 { return sess.id }

// PendingCount returns the number of operations awaiting completion.
func (sess *Session) PendingCount() int { return len(sess.pending) }

// Read looks up key and hands the value to Functions.Reader, which fills out.
// On StatusPending out is filled later by CompletePending, so it must stay
// valid until then.
func (sess *Session) Read(key, input []byte, out *Output, userCtx any) (Status, error) {
	if out == nil {
		out = &Output{}
	}
	return sess.run(newOperation(OpRead, key, input, nil, out, userCtx))
}

// Upsert sets the value of key.
func (sess *Session) Upsert(key, value []byte, userCtx any) (Status, error) {
	return sess.run(newOperation(OpUpsert, key, nil, value, nil, userCtx))
}

// RMW updates the value of key from input through the Functions.
func (sess *Session) RMW(key, input []byte, userCtx any) (Status, error) {
	return sess.run(newOperation(OpRMW, key, input, nil, nil, userCtx))
}

// Delete removes key.
func (sess *Session) Delete(key []byte, userCtx any) (Status, error) {
	return sess.run(newOperation(OpDelete, key, nil, nil, nil, userCtx))
}

func (sess *Session) run(op *operation) (Status, error) {
	if sess.closed {
		return sess.fail(op, ErrClosed)
	}
	st, err := sess.s.execute(op)
	if st == StatusPending {
		op.detach()
		op.wake = sess.wake
		if op.out != nil {
			op.out.Status = StatusPending
		}
		sess.s.issue(op)
		sess.pending = append(sess.pending, op)
		return st, nil
	}
	sess.s.finish(op, st)
	return st, err
}

func (sess *Session) fail(op *operation, err error) (Status, error) {
	sess.s.finish(op, StatusError)
	return StatusError, err
}

// CompletePending resumes the pending operations whose I/O or contention
// back-off is over. With wait it returns only once none is left, or when
// ctx ends. Each finished operation updates its Output and, when the
// Functions implement CompletionHandler, is reported there. The returned
// error joins the errors of failed operations.
func (sess *Session) CompletePending(ctx context.Context, wait bool) error {
	var errs []error
	for len(sess.pending) > 0 {
		still := sess.pending[:0]
		resumed := false
		for _, op := range sess.pending {
			select {
			case <-op.ready:
			default:
				still = append(still, op)
				continue
			}
			resumed = true

			st, err := sess.s.resume(op)
			if st == StatusPending {
				sess.s.issue(op)
				still = append(still, op)
				continue
			}
			sess.s.finish(op, st)
			if err != nil {
				sess.logger.WarnContext(ctx, "pending operation failed", "op", op.kind.String(), "error", err)
				errs = append(errs, err)
			}
			sess.notify(op, st, err)
		}
		clear(sess.pending[len(still):])
		sess.pending = still

		if !wait || len(sess.pending) == 0 {
			break
		}
		if resumed {
			runtime.Gosched()
			continue
		}
		select {
		case <-sess.wake:
		case <-ctx.Done():
			return errors.Join(append(errs, ctx.Err())...)
		}
	}
	return errors.Join(errs...)
}

func (sess *Session) notify(op *operation, st Status, err error) {
	h, ok := sess.s.fns.(CompletionHandler)
	if !ok {
		return
	}
	c := Completion{
		Kind:    op.kind,
		Key:     op.key,
		Status:  st,
		Err:     err,
		Context: op.userCtx,
	}
	if op.kind == OpRead {
		c.Output = op.out
	}
	h.OnCompletion(c)
}

// Close waits for the pending operations and ends the session.
func (sess *Session) Close(ctx context.Context) error {
	if sess.closed {
		return ErrClosed
	}
	err := sess.CompletePending(ctx, true)
	sess.closed = true
	return err
}
