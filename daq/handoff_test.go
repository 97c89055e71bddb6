// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"testing"
	"time"
)

func TestParsePolicy(t *testing.T) {
	for _, tc := range []struct {
		name string
		want Policy
		err  string
	}{
		{name: "", want: MessagePolicy},
		{name: "queue", want: MessagePolicy},
		{name: "Message", want: MessagePolicy},
		{name: "mutex", want: MutexPolicy},
		{name: "rwmutex", want: RWMutexPolicy},
		{name: "chan", err: `daq: invalid hand-off policy "chan"`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePolicy(tc.name)
			switch {
			case tc.err != "":
				if err == nil || err.Error() != tc.err {
					t.Fatalf("invalid error: got=%v, want=%v", err, tc.err)
				}
				return
			case err != nil:
				t.Fatalf("could not parse policy: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("invalid policy: got=%v, want=%v", got, tc.want)
			}
			if got.String() == "" {
				t.Fatalf("empty policy name")
			}
		})
	}

	_, err := NewHandoff(Policy(42), time.Millisecond)
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestHandoffOrdering(t *testing.T) {
	const (
		nbatches = 2000
		size     = 7
	)

	for _, p := range []Policy{MessagePolicy, MutexPolicy, RWMutexPolicy} {
		t.Run(p.String(), func(t *testing.T) {
			h, err := NewHandoff(p, 100*time.Microsecond)
			if err != nil {
				t.Fatalf("could not create hand-off: %+v", err)
			}

			go func() {
				// the scratch buffer is reused, as the acquisition loop does.
				buf := make([]uint32, size)
				for i := 0; i < nbatches; i++ {
					n := 1 + i%size
					for j := range buf[:n] {
						buf[j] = uint32(i)
					}
					h.Put(Batch{Seq: uint64(i), Recs: buf[:n]})
					if i%100 == 0 {
						time.Sleep(50 * time.Microsecond)
					}
				}
				h.Close()
			}()

			var (
				got     []Batch
				batches []Batch
				ok      = true
			)
			for ok {
				batches, ok = h.Next(batches[:0])
				got = append(got, batches...)
			}

			if len(got) != nbatches {
				t.Fatalf("invalid number of batches: got=%d, want=%d", len(got), nbatches)
			}
			for i, b := range got {
				if b.Seq != uint64(i) {
					t.Fatalf("batch %d: invalid sequence number %d", i, b.Seq)
				}
				if got, want := b.Len(), 1+i%size; got != want {
					t.Fatalf("batch %d: invalid length: got=%d, want=%d", i, got, want)
				}
				for j, v := range b.Recs {
					if v != uint32(i) {
						t.Fatalf("batch %d: invalid record %d: got=%d, want=%d", i, j, v, i)
					}
				}
			}
		})
	}
}

func TestHandoffClose(t *testing.T) {
	for _, h := range []Handoff{NewQueue(), NewMutexBuffer(time.Millisecond), NewRWBuffer(time.Millisecond)} {
		h.Put(Batch{Seq: 0, Recs: []uint32{1, 2}})
		h.Close()

		bs, ok := h.Next(nil)
		if !ok || len(bs) != 1 {
			t.Fatalf("%T: pending batch not delivered after close: ok=%v, n=%d", h, ok, len(bs))
		}
		bs, ok = h.Next(bs[:0])
		if ok || len(bs) != 0 {
			t.Fatalf("%T: closed hand-off should be drained: ok=%v, n=%d", h, ok, len(bs))
		}

		func() {
			defer func() {
				if e := recover(); e == nil {
					t.Fatalf("%T: expected a panic putting on a closed hand-off", h)
				}
			}()
			h.Put(Batch{})
		}()
	}
}

func TestQueueWakesConsumer(t *testing.T) {
	q := NewQueue()
	done := make(chan []Batch)
	go func() {
		bs, _ := q.Next(nil)
		done <- bs
	}()

	time.Sleep(10 * time.Millisecond)
	q.Put(Batch{Seq: 42, Recs: []uint32{1}})

	select {
	case bs := <-done:
		if len(bs) != 1 || bs[0].Seq != 42 {
			t.Fatalf("invalid batches: %+v", bs)
		}
	case <-time.After(time.Second):
		t.Fatalf("consumer not woken up")
	}
	if n := q.Len(); n != 0 {
		t.Fatalf("invalid queue length: %d", n)
	}
}

func TestSharedLen(t *testing.T) {
	s := NewRWBuffer(time.Millisecond)
	s.Put(Batch{Seq: 0, Recs: []uint32{1}})
	s.Put(Batch{Seq: 1, Recs: []uint32{2, 3}})
	if got, want := s.Len(), 2; got != want {
		t.Fatalf("invalid length: got=%d, want=%d", got, want)
	}

	bs, ok := s.Next(nil)
	if !ok || len(bs) != 2 {
		t.Fatalf("invalid batches: ok=%v, n=%d", ok, len(bs))
	}
	if got, want := bs[1].Recs, []uint32{2, 3}; len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("invalid records: got=%v, want=%v", got, want)
	}
	if got := s.Len(); got != 0 {
		t.Fatalf("invalid length after drain: %d", got)
	}
}
