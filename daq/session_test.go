// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-lpc/harp/mh"
	"github.com/go-lpc/harp/mh/sim"
	"github.com/go-lpc/harp/tttr"
)

func openSim(t *testing.T, opts ...sim.Option) *sim.Device {
	t.Helper()
	reg := sim.NewRegistry(sim.WithLogger(log.New(io.Discard, "sim: ", 0)))
	dev, err := reg.Open(0, opts...)
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	t.Cleanup(func() { _ = dev.Close() })

	err = dev.Init(mh.T3, mh.Internal)
	if err != nil {
		t.Fatalf("could not initialize device: %+v", err)
	}
	return dev
}

func waitDone(t *testing.T, sess *Session, timeout time.Duration) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(timeout):
		t.Fatalf("session still running after %v", timeout)
	}
}

func TestSessionNoLoss(t *testing.T) {
	for _, p := range []Policy{MessagePolicy, MutexPolicy, RWMutexPolicy} {
		t.Run(p.String(), func(t *testing.T) {
			dev := openSim(t, sim.WithRate(2e5), sim.WithSeed(42))

			sess, err := Start(dev, 200, discard(), WithPolicy(p))
			if err != nil {
				t.Fatalf("could not start session: %+v", err)
			}
			waitDone(t, sess, 5*time.Second)

			rep, err := sess.Stop()
			if err != nil {
				t.Fatalf("could not stop session: %+v", err)
			}

			ngen := dev.Generated()
			if ngen == 0 {
				t.Fatalf("no record generated")
			}
			if got, want := rep.Consumed.Events, ngen; got != want {
				t.Fatalf("invalid number of consumed events: got=%d, want=%d", got, want)
			}
			if got, want := rep.Loop.Records, ngen; got != want {
				t.Fatalf("invalid number of read records: got=%d, want=%d", got, want)
			}
			if dev.Dropped() != 0 || dev.Pending() != 0 {
				t.Fatalf("records left behind: dropped=%d pending=%d", dev.Dropped(), dev.Pending())
			}
			if rep.Rate() <= 0 {
				t.Fatalf("invalid rate: %v", rep.Rate())
			}
		})
	}
}

func TestSessionOrdering(t *testing.T) {
	for _, p := range []Policy{MessagePolicy, MutexPolicy, RWMutexPolicy} {
		t.Run(p.String(), func(t *testing.T) {
			gen := &sim.Pattern{Mode: tttr.T3, N: 37}
			dev := openSim(t, sim.WithGenerator(gen))

			var (
				next uint32
				seq  uint64
			)
			proc := func(b Batch) error {
				if b.Seq < seq {
					return fmt.Errorf("batch %d after batch %d", b.Seq, seq)
				}
				seq = b.Seq
				for _, r := range b.Recs {
					if got := sim.Seq(r); got != next {
						return fmt.Errorf("invalid record: got=%d, want=%d", got, next)
					}
					next++
				}
				return nil
			}

			sess, err := Start(dev, 100, discard(), WithPolicy(p), WithProcessor(proc))
			if err != nil {
				t.Fatalf("could not start session: %+v", err)
			}
			waitDone(t, sess, 5*time.Second)

			rep, err := sess.Stop()
			if err != nil {
				t.Fatalf("could not stop session: %+v", err)
			}
			if got, want := next, gen.Emitted(); got != want {
				t.Fatalf("invalid number of processed records: got=%d, want=%d", got, want)
			}
			if got, want := rep.Consumed.Events, uint64(gen.Emitted()); got != want {
				t.Fatalf("invalid number of consumed events: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestSessionUnbounded(t *testing.T) {
	dev := openSim(t, sim.WithControl(mh.SwStartSwStop), sim.WithRate(1e4))

	sess, err := Start(dev, 10, discard())
	if err != nil {
		t.Fatalf("could not start session: %+v", err)
	}

	time.Sleep(100 * time.Millisecond)
	select {
	case <-sess.Done():
		t.Fatalf("unbounded session ended on its own")
	default:
	}

	rep, err := sess.Stop()
	if err != nil {
		t.Fatalf("could not stop session: %+v", err)
	}
	if got, want := rep.Consumed.Events, dev.Generated(); got != want {
		t.Fatalf("invalid number of consumed events: got=%d, want=%d", got, want)
	}

	_, err = sess.Stop()
	if err == nil {
		t.Fatalf("expected an error stopping a session twice")
	}
}

func TestSessionConsumers(t *testing.T) {
	dev := openSim(t, sim.WithRate(1e5))

	sess, err := Start(dev, 100, discard(), WithConsumers(4), WithPolicy(MutexPolicy))
	if err != nil {
		t.Fatalf("could not start session: %+v", err)
	}
	waitDone(t, sess, 5*time.Second)

	rep, err := sess.Stop()
	if err != nil {
		t.Fatalf("could not stop session: %+v", err)
	}
	if got, want := rep.Consumed.Events, dev.Generated(); got != want {
		t.Fatalf("invalid number of consumed events: got=%d, want=%d", got, want)
	}
}

func TestSessionProcessorError(t *testing.T) {
	errBoom := errors.New("boom")
	dev := openSim(t, sim.WithGenerator(&sim.Pattern{Mode: tttr.T3, N: 10}))

	sess, err := Start(dev, 50, discard(), WithProcessor(func(Batch) error {
		return errBoom
	}))
	if err != nil {
		t.Fatalf("could not start session: %+v", err)
	}
	waitDone(t, sess, 5*time.Second)

	rep, err := sess.Stop()
	if !errors.Is(err, errBoom) {
		t.Fatalf("invalid error: got=%v, want=%v", err, errBoom)
	}
	if got, want := rep.Consumed.Events, dev.Generated(); got != want {
		t.Fatalf("invalid number of consumed events: got=%d, want=%d", got, want)
	}
}

func TestSessionStartErrors(t *testing.T) {
	reg := sim.NewRegistry(sim.WithLogger(log.New(io.Discard, "sim: ", 0)))
	dev, err := reg.Open(0)
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	_, err = Start(dev, 100, discard())
	if !errors.Is(err, mh.ErrNotInitialized) {
		t.Fatalf("invalid error: got=%v, want=%v", err, mh.ErrNotInitialized)
	}

	_, err = Start(dev, 100, discard(), WithConsumers(0))
	if err == nil {
		t.Fatalf("expected an error with no consumer")
	}

	_, err = Start(dev, 100, discard(), WithPolicy(Policy(42)))
	if err == nil {
		t.Fatalf("expected an error with an invalid policy")
	}

	_, err = Start(&fakeDevice{}, mh.AcqTMax+1, discard())
	if !errors.Is(err, mh.ErrInvalidArgument) {
		t.Fatalf("invalid error: got=%v, want=%v", err, mh.ErrInvalidArgument)
	}
}

func TestSessionReadError(t *testing.T) {
	dev := &fakeDevice{
		reads: [][]uint32{{1, 2}, {3}},
		nctc:  -1,
		rderr: mh.ErrUSBBulkReadFail,
	}

	sess, err := Start(dev, 100, discard())
	if err != nil {
		t.Fatalf("could not start session: %+v", err)
	}
	waitDone(t, sess, 5*time.Second)

	rep, err := sess.Stop()
	if !errors.Is(err, mh.ErrUSBBulkReadFail) {
		t.Fatalf("invalid error: got=%v, want=%v", err, mh.ErrUSBBulkReadFail)
	}
	if !dev.stopped {
		t.Fatalf("measurement not stopped")
	}
	if got, want := rep.Consumed.Events, uint64(3); got != want {
		t.Fatalf("invalid number of consumed events: got=%d, want=%d", got, want)
	}
}
