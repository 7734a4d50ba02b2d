// Package actor makes a Store safe for concurrent callers by giving it a
// single owning goroutine and a FIFO mailbox: every mutation and read is
// serialized through one thread of control, so the core engine itself
// needs no locks.
package actor

import (
	"kvs/internal/engine/store"
)

type opKind int

const (
	opSet opKind = iota
	opGet
	opDel
	opScan
	opSnapshot
	opSetMaxLogSize
)

type request struct {
	kind       opKind
	key        []byte
	value      []byte
	prefix     []byte
	maxLogSize int64
	reply      chan response
}

type response struct {
	value   []byte
	present bool
	keys    []string
	gen     uint64
	err     error
}

// Actor owns a *store.Store on a dedicated goroutine. All exported methods
// are safe to call concurrently from any number of goroutines; each call
// blocks until its request has been applied and the reply sent.
type Actor struct {
	mailbox chan request
	done    chan struct{}
}

// Start spawns the actor goroutine and returns immediately. The returned
// Actor takes ownership of s: callers must not use s directly afterward.
func Start(s *store.Store) *Actor {
	a := &Actor{
		mailbox: make(chan request),
		done:    make(chan struct{}),
	}

	go a.run(s)

	return a
}

// run is the actor loop: dequeue, apply, reply, one request at a time, in
// arrival order. The mailbox has no priority lanes.
//
// Shutdown policy: drain-then-exit. Closing the mailbox (via Close) stops
// new sends from succeeding, but ranging over a closed channel still
// yields every request already enqueued before Close was called, so
// in-flight callers always receive a reply.
func (a *Actor) run(s *store.Store) {
	defer close(a.done)

	for req := range a.mailbox {
		req.reply <- a.apply(s, req)
	}

	_ = s.Close()
}

func (a *Actor) apply(s *store.Store, req request) response {
	switch req.kind {
	case opSet:
		err := s.Set(req.key, req.value)
		return response{err: err}
	case opGet:
		value, ok, err := s.Get(req.key)
		return response{value: value, present: ok, err: err}
	case opDel:
		present, err := s.Del(req.key)
		return response{present: present, err: err}
	case opScan:
		return response{keys: s.Scan(req.prefix)}
	case opSnapshot:
		gen, err := s.Snapshot()
		return response{gen: gen, err: err}
	case opSetMaxLogSize:
		s.SetMaxLogSize(req.maxLogSize)
		return response{}
	default:
		panic("actor: unknown request kind")
	}
}

func (a *Actor) send(req request) response {
	req.reply = make(chan response, 1)
	a.mailbox <- req

	return <-req.reply
}

// Set submits a Set request and waits for it to be applied.
func (a *Actor) Set(key, value []byte) error {
	resp := a.send(request{kind: opSet, key: key, value: value})
	return resp.err
}

// Get submits a Get request and waits for its result.
func (a *Actor) Get(key []byte) ([]byte, bool, error) {
	resp := a.send(request{kind: opGet, key: key})
	return resp.value, resp.present, resp.err
}

// Del submits a Del request and waits for its result.
func (a *Actor) Del(key []byte) (bool, error) {
	resp := a.send(request{kind: opDel, key: key})
	return resp.present, resp.err
}

// Scan submits a Scan request and waits for its result.
func (a *Actor) Scan(prefix []byte) []string {
	resp := a.send(request{kind: opScan, prefix: prefix})
	return resp.keys
}

// Snapshot submits an explicit Snapshot request and waits for its result.
func (a *Actor) Snapshot() (uint64, error) {
	resp := a.send(request{kind: opSnapshot})
	return resp.gen, resp.err
}

// SetMaxLogSize submits a request to change the auto-snapshot threshold
// and waits for it to take effect. Takes effect on the next Set/Del.
func (a *Actor) SetMaxLogSize(n int64) {
	a.send(request{kind: opSetMaxLogSize, maxLogSize: n})
}

// Close closes the mailbox and blocks until the actor goroutine has
// drained every already-enqueued request and closed the Store. Close must
// be called exactly once; further Set/Get/Del/Scan/Snapshot calls after
// Close panic, matching a close of an already-closed channel.
func (a *Actor) Close() {
	close(a.mailbox)
	<-a.done
}
