package latchkv

import "context"

// Token tracks an operation started with one of the Async methods. A token
// is not safe for concurrent use.
//
//	t := sess.ReadAsync(key, nil, nil)
//	if _, err := t.Wait(ctx); err != nil {
//	    return err
//	}
//	value := t.Output().Value
type Token struct {
	s      *Store
	op     *operation
	status Status
	err    error
	out    Output
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// ReadAsync starts a read whose result is kept in the token.
func (sess *Session) ReadAsync(key, input []byte, userCtx any) *Token {
	t := &Token{s: sess.s}
	return sess.start(t, newOperation(OpRead, key, input, nil, &t.out, userCtx))
}

// UpsertAsync starts an upsert.
func (sess *Session) UpsertAsync(key, value []byte, userCtx any) *Token {
	return sess.start(&Token{s: sess.s}, newOperation(OpUpsert, key, nil, value, nil, userCtx))
}

// RMWAsync starts a read-modify-write.
func (sess *Session) RMWAsync(key, input []byte, userCtx any) *Token {
	return sess.start(&Token{s: sess.s}, newOperation(OpRMW, key, input, nil, nil, userCtx))
}

// DeleteAsync starts a delete.
func (sess *Session) DeleteAsync(key []byte, userCtx any) *Token {
	return sess.start(&Token{s: sess.s}, newOperation(OpDelete, key, nil, nil, nil, userCtx))
}

func (sess *Session) start(t *Token, op *operation) *Token {
	t.op = op
	if sess.closed {
		t.status, t.err = sess.fail(op, ErrClosed)
		return t
	}
	t.status, t.err = sess.s.execute(op)
	if t.status == StatusPending {
		op.detach()
		sess.s.issue(op)
		return t
	}
	sess.s.finish(op, t.status)
	return t
}

// Status returns the status after the last step.
func (t *Token) Status() Status { return t.status }

// Err returns the error of a failed operation.
func (t *Token) Err() error { return t.err }

// Output returns the result of a read.
func (t *Token) Output() *Output { return &t.out }

// Ready is closed once Complete can make progress without blocking. Each
// Complete that leaves the token pending starts a new wait, so call Ready
// again afterwards.
func (t *Token) Ready() <-chan struct{} {
	if t.status != StatusPending {
		return closedCh
	}
	return t.op.ready
}

// Complete waits for the outstanding I/O and re-executes the operation. The
// token may be pending again afterwards, for instance when a hash chain
// continues on the device. If ctx ends first, Complete returns StatusPending
// with the context error and the token stays usable.
func (t *Token) Complete(ctx context.Context) (Status, error) {
	if t.status != StatusPending {
		return t.status, t.err
	}
	select {
	case <-t.op.ready:
	case <-ctx.Done():
		return StatusPending, ctx.Err()
	}

	st, err := t.s.resume(t.op)
	if st == StatusPending {
		t.s.issue(t.op)
	} else {
		t.s.finish(t.op, st)
	}
	t.status, t.err = st, err
	return st, err
}

// Wait runs Complete until the operation reaches a final status.
func (t *Token) Wait(ctx context.Context) (Status, error) {
	for {
		st, err := t.Complete(ctx)
		if st != StatusPending {
			return st, err
		}
		if err != nil {
			return st, err
		}
	}
}
