// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Handoff moves batches from the acquisition goroutine to consumers,
// preserving the order in which they were put.
type Handoff interface {
	// Put hands b over to consumers.
	// b.Recs is copied and may be reused once Put returns.
	// Put never waits on consumers.
	Put(b Batch)

	// Next appends the pending batches to dst.
	// Next waits until at least one batch is available or the hand-off
	// has been closed. ok is false once the hand-off is closed and drained.
	Next(dst []Batch) (batches []Batch, ok bool)

	// Close signals no more batches will be put.
	Close()
}

var (
	_ Handoff = (*Queue)(nil)
	_ Handoff = (*Shared)(nil)
)

// Policy selects a hand-off implementation.
type Policy int

const (
	MessagePolicy Policy = iota // unbounded message queue
	MutexPolicy                 // shared buffer guarded by a sync.Mutex
	RWMutexPolicy               // shared buffer guarded by a sync.RWMutex
)

func (p Policy) String() string {
	switch p {
	case MessagePolicy:
		return "message"
	case MutexPolicy:
		return "mutex"
	case RWMutexPolicy:
		return "rwmutex"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses the name of a hand-off policy.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "message", "queue", "":
		return MessagePolicy, nil
	case "mutex":
		return MutexPolicy, nil
	case "rwmutex":
		return RWMutexPolicy, nil
	default:
		return 0, fmt.Errorf("daq: invalid hand-off policy %q", name)
	}
}

// NewHandoff creates a hand-off for the provided policy.
// poll is the polling period of shared-buffer consumers.
func NewHandoff(p Policy, poll time.Duration) (Handoff, error) {
	switch p {
	case MessagePolicy:
		return NewQueue(), nil
	case MutexPolicy:
		return NewMutexBuffer(poll), nil
	case RWMutexPolicy:
		return NewRWBuffer(poll), nil
	default:
		return nil, fmt.Errorf("daq: invalid hand-off policy %v", p)
	}
}

// Queue is an unbounded message queue: each batch is an independent,
// owned copy. Consumers wait on a condition variable.
type Queue struct {
	mu     sync.Mutex
	cond   sync.Cond
	msgs   []Batch
	closed bool
}

// NewQueue returns a new, empty message queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond.L = &q.mu
	return q
}

func (q *Queue) Put(b Batch) {
	b.Recs = append([]uint32(nil), b.Recs...)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		panic("daq: put on closed queue")
	}
	q.msgs = append(q.msgs, b)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *Queue) Next(dst []Batch) ([]Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.msgs) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.msgs) == 0 {
		return dst, false
	}

	dst = append(dst, q.msgs...)
	for i := range q.msgs {
		q.msgs[i] = Batch{}
	}
	q.msgs = q.msgs[:0]
	return dst, true
}

func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Len returns the number of pending batches.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// Shared is a record buffer shared between the acquisition goroutine and
// consumers, guarded either by a sync.Mutex or a sync.RWMutex.
// Batch boundaries are kept, so batches are never merged.
//
// Consumers poll the buffer and take ownership of everything present.
// Consumers holding the lock stall the next Put and thus the next FIFO
// read: the critical sections only swap slices.
type Shared struct {
	lock  sync.Locker
	rlock sync.Locker
	poll  time.Duration

	recs   []uint32
	ends   []int // end offset in recs of each batch
	seqs   []uint64
	closed bool
}

// NewMutexBuffer returns a shared buffer guarded by a sync.Mutex, whose
// consumers poll every poll period.
func NewMutexBuffer(poll time.Duration) *Shared {
	mu := new(sync.Mutex)
	return &Shared{lock: mu, rlock: mu, poll: poll}
}

// NewRWBuffer returns a shared buffer guarded by a sync.RWMutex, whose
// consumers poll every poll period.
// Producer and consumers both modify the buffer, so only Len benefits
// from the read lock.
func NewRWBuffer(poll time.Duration) *Shared {
	mu := new(sync.RWMutex)
	return &Shared{lock: mu, rlock: mu.RLocker(), poll: poll}
}

func (s *Shared) Put(b Batch) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		panic("daq: put on closed shared buffer")
	}
	s.recs = append(s.recs, b.Recs...)
	s.ends = append(s.ends, len(s.recs))
	s.seqs = append(s.seqs, b.Seq)
}

func (s *Shared) Next(dst []Batch) ([]Batch, bool) {
	for {
		s.lock.Lock()
		var (
			recs   = s.recs
			ends   = s.ends
			seqs   = s.seqs
			closed = s.closed
		)
		if len(ends) > 0 {
			s.recs = nil
			s.ends = nil
			s.seqs = nil
		}
		s.lock.Unlock()

		if len(ends) > 0 {
			beg := 0
			for i, end := range ends {
				dst = append(dst, Batch{Seq: seqs[i], Recs: recs[beg:end:end]})
				beg = end
			}
			return dst, true
		}
		if closed {
			return dst, false
		}
		time.Sleep(s.poll)
	}
}

func (s *Shared) Close() {
	s.lock.Lock()
	s.closed = true
	s.lock.Unlock()
}

// Len returns the number of pending batches.
func (s *Shared) Len() int {
	s.rlock.Lock()
	defer s.rlock.Unlock()
	return len(s.ends)
}
