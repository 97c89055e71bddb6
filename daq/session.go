// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"fmt"
	"log"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-lpc/harp/mh"
)

// Session is a running acquisition.
//
// The device is owned by the acquisition goroutine until Stop returns:
// it must not be used by other goroutines in the meantime.
type Session struct {
	msg *log.Logger
	cfg config
	dev mh.Device

	hoff Handoff
	loop *Loop
	cons []*Consumer
	grp  errgroup.Group

	start time.Time
	tacq  time.Duration // zero for unbounded sessions

	done chan struct{} // closed when the acquisition goroutine exits
	err  error         // acquisition error, valid once done is closed
	stop bool
}

// Report summarizes a session.
type Report struct {
	Start    time.Time
	Elapsed  time.Duration
	Loop     LoopStats
	Consumed Stats
}

// Rate returns the mean event rate of the session, in Hz.
func (r Report) Rate() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Consumed.Events) / r.Elapsed.Seconds()
}

// Start starts a measurement of ms milliseconds on dev and launches the
// acquisition and consumer goroutines.
func Start(dev mh.Device, ms int, opts ...Option) (*Session, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.consumers < 1 {
		return nil, fmt.Errorf("daq: invalid number of consumers %d", cfg.consumers)
	}

	hoff, err := NewHandoff(cfg.policy, cfg.poll)
	if err != nil {
		return nil, err
	}

	err = dev.StartMeasurement(ms)
	if err != nil {
		return nil, fmt.Errorf("daq: could not start measurement: %w", err)
	}

	sess := &Session{
		msg:   cfg.msg,
		cfg:   cfg,
		dev:   dev,
		hoff:  hoff,
		loop:  newLoop(dev, hoff, cfg),
		start: time.Now(),
		tacq:  time.Duration(ms) * time.Millisecond,
		done:  make(chan struct{}),
	}

	for i := 0; i < cfg.consumers; i++ {
		c := &Consumer{msg: cfg.msg, proc: cfg.proc}
		sess.cons = append(sess.cons, c)
		sess.grp.Go(func() error {
			return c.Run(hoff)
		})
	}

	go func() {
		defer close(sess.done)
		sess.err = sess.acquire()
	}()

	sess.msg.Printf(
		"session started (tacq=%v, policy=%v, consumers=%d)",
		sess.tacq, cfg.policy, cfg.consumers,
	)
	return sess, nil
}

func (sess *Session) acquire() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if sess.cfg.cpu >= 0 {
		err := pin(sess.cfg.cpu)
		if err != nil {
			sess.msg.Printf("could not pin acquisition thread: %+v", err)
		}
	}

	return sess.loop.Run()
}

// Done returns a channel closed once the acquisition goroutine has exited,
// because the measurement ended or a device error occurred.
func (sess *Session) Done() <-chan struct{} {
	return sess.done
}

// Stats returns a snapshot of the session statistics.
// Stats is safe to call concurrently with the session goroutines.
func (sess *Session) Stats() Report {
	rep := Report{
		Start:   sess.start,
		Elapsed: time.Since(sess.start),
		Loop:    sess.loop.Stats(),
	}
	for _, c := range sess.cons {
		rep.Consumed = rep.Consumed.add(c.Stats())
	}
	return rep
}

// Stop stops the acquisition, waits for its goroutines to exit, stops the
// device measurement and drains the device FIFO into the consumers.
//
// Stop returns the first error encountered by the session.
func (sess *Session) Stop() (Report, error) {
	if sess.stop {
		return sess.Stats(), fmt.Errorf("daq: session already stopped")
	}
	sess.stop = true

	sess.loop.Stop()

	tmr := time.NewTimer(sess.cfg.timeout)
	defer tmr.Stop()

	select {
	case <-sess.done:
	case <-tmr.C:
		return sess.Stats(), fmt.Errorf(
			"daq: could not stop acquisition (timeout=%v)", sess.cfg.timeout,
		)
	}

	var errs []error
	if sess.err != nil {
		errs = append(errs, fmt.Errorf("daq: error during acquisition: %w", sess.err))
	}

	err := sess.dev.StopMeasurement()
	if err != nil {
		errs = append(errs, fmt.Errorf("daq: could not stop measurement: %w", err))
	}

	if sess.err == nil {
		err = sess.loop.Drain()
		if err != nil {
			errs = append(errs, fmt.Errorf("daq: could not drain FIFO: %w", err))
		}
	}

	sess.hoff.Close()

	cerr := make(chan error, 1)
	go func() {
		cerr <- sess.grp.Wait()
	}()
	select {
	case err := <-cerr:
		if err != nil {
			errs = append(errs, fmt.Errorf("daq: error during processing: %w", err))
		}
	case <-tmr.C:
		errs = append(errs, fmt.Errorf(
			"daq: could not join consumers (timeout=%v)", sess.cfg.timeout,
		))
	}

	rep := sess.Stats()
	sess.msg.Printf(
		"session stopped: events=%d photons=%d specials=%d batches=%d reads=%d max-read=%v",
		rep.Consumed.Events, rep.Consumed.Photons, rep.Consumed.Specials,
		rep.Consumed.Batches, rep.Loop.Reads, rep.Loop.MaxRead,
	)

	if len(errs) > 0 {
		for _, err := range errs[1:] {
			sess.msg.Printf("%+v", err)
		}
		return rep, errs[0]
	}
	return rep, nil
}
