// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sim provides simulated MultiHarp devices, producing statistically
// realistic TTTR event streams without any hardware attached.
package sim // import "github.com/go-lpc/harp/mh/sim"

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/xerrors"

	"github.com/go-lpc/harp/mh"
	"github.com/go-lpc/harp/tttr"
)

const (
	maxChannels = 64
	stopTimeout = 10 * time.Second
)

var (
	_ mh.Device  = (*Device)(nil)
	_ mh.Flagger = (*Device)(nil)
	_ mh.Rater   = (*Device)(nil)
)

// Device is a simulated MultiHarp device.
//
// Events are produced by a generation goroutine into an internal FIFO,
// drained with ReadFIFO.
type Device struct {
	reg    *Registry
	idx    int
	serial string
	msg    *log.Logger
	depth  int

	closed    atomic.Bool
	acquiring atomic.Bool // polled by the generation goroutine

	mu    sync.Mutex // guards cfg, mode, init, nsess and sess
	cfg   config
	mode  mh.Mode
	init  bool
	nsess uint64
	sess  session

	fifo struct {
		sync.RWMutex
		buf  []uint32
		ngen uint64 // records generated during the session
		lost uint64 // records dropped because the FIFO was full
		warn mh.Warning
	}
}

type session struct {
	running bool
	start   time.Time
	tacq    time.Duration
	bounded bool
	done    chan error
}

func newDevice(reg *Registry, idx int, serial string, cfg config) (*Device, error) {
	err := cfg.validate()
	if err != nil {
		return nil, err
	}
	dev := &Device{
		reg:    reg,
		idx:    idx,
		serial: serial,
		msg:    cfg.msg,
		depth:  cfg.depth,
		cfg:    cfg,
		mode:   mh.T3,
	}
	return dev, nil
}

func (cfg *config) validate() error {
	switch {
	case cfg.rate < 0:
		return &mh.ArgumentError{Name: "rate", Value: cfg.rate, Msg: "must be positive"}
	case cfg.syncRate < 0:
		return &mh.ArgumentError{Name: "sync rate", Value: cfg.syncRate, Msg: "must be positive"}
	case cfg.channels < 1 || cfg.channels > maxChannels:
		return &mh.ArgumentError{
			Name: "channels", Value: cfg.channels,
			Msg: fmt.Sprintf("must be in [1, %d]", maxChannels),
		}
	case cfg.tick <= 0:
		return &mh.ArgumentError{Name: "tick", Value: cfg.tick, Msg: "must be strictly positive"}
	case cfg.depth < 1:
		return &mh.ArgumentError{Name: "FIFO depth", Value: cfg.depth, Msg: "must be strictly positive"}
	}
	return checkTaus(cfg.taus)
}

func checkTaus(taus []float64) error {
	for _, tau := range taus {
		if tau <= 0 {
			return &mh.ArgumentError{Name: "tau", Value: tau, Msg: "must be strictly positive"}
		}
	}
	return nil
}

func (dev *Device) Index() int     { return dev.idx }
func (dev *Device) Serial() string { return dev.serial }

// Resolution returns the base resolution of the device, in ps.
func (dev *Device) Resolution() float64 {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.cfg.res
}

// Close stops any running measurement and releases the device slot.
func (dev *Device) Close() error {
	if !dev.closed.CompareAndSwap(false, true) {
		return nil
	}
	defer dev.reg.release(dev)

	dev.mu.Lock()
	running := dev.sess.running
	dev.mu.Unlock()

	if running {
		err := dev.StopMeasurement()
		if err != nil {
			return xerrors.Errorf("sim: could not stop measurement during close: %w", err)
		}
	}
	return nil
}

func (dev *Device) Init(mode mh.Mode, ref mh.RefClock) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	switch {
	case dev.closed.Load():
		return mh.ErrDeviceNotOpen
	case dev.sess.running:
		return xerrors.Errorf("sim: could not initialize device: %w", mh.ErrInstanceRunning)
	}

	switch mode {
	case mh.T2, mh.T3:
	case mh.Histogramming:
		return xerrors.Errorf("sim: mode %v: %w", mode, mh.ErrFeatureNotAvailable)
	default:
		return &mh.ArgumentError{Name: "mode", Value: mode, Msg: "invalid measurement mode"}
	}

	switch ref {
	case mh.Internal, mh.External:
	default:
		if ref < mh.Internal || ref > mh.WRGrandMasterMHarp {
			return &mh.ArgumentError{Name: "reference clock", Value: int32(ref), Msg: "invalid reference clock"}
		}
		return xerrors.Errorf("sim: reference clock %d: %w", ref, mh.ErrFeatureNotAvailable)
	}

	dev.mode = mode
	dev.init = true
	return nil
}

// Mode returns the measurement mode the device was initialized with.
func (dev *Device) Mode() mh.Mode {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.mode
}

func (dev *Device) StartMeasurement(ms int) error {
	err := mh.CheckAcqTime(ms)
	if err != nil {
		return err
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	switch {
	case dev.closed.Load():
		return mh.ErrDeviceNotOpen
	case !dev.init:
		return xerrors.Errorf("sim: could not start measurement: %w", mh.ErrNotInitialized)
	case dev.sess.running:
		return xerrors.Errorf("sim: could not start measurement: %w", mh.ErrInstanceRunning)
	}

	gen := dev.cfg.gen
	if gen == nil {
		mode, _ := dev.mode.TTTR()
		gen = NewPoisson(PoissonConfig{
			Mode:       mode,
			Rate:       dev.cfg.rate,
			SyncRate:   dev.cfg.syncRate,
			Taus:       dev.cfg.taus,
			Channels:   dev.cfg.channels,
			Resolution: dev.cfg.res,
		}, dev.cfg.seed+dev.nsess)
	}
	dev.nsess++

	dev.fifo.Lock()
	dev.fifo.buf = dev.fifo.buf[:0]
	dev.fifo.ngen = 0
	dev.fifo.lost = 0
	dev.fifo.warn = 0
	dev.fifo.Unlock()

	dev.sess = session{
		running: true,
		start:   time.Now(),
		tacq:    time.Duration(ms) * time.Millisecond,
		bounded: dev.cfg.control.Bounded(),
		done:    make(chan error, 1),
	}
	dev.acquiring.Store(true)

	go dev.generate(gen, dev.sess, dev.cfg.tick)
	return nil
}

// generate runs the generation goroutine of a session.
func (dev *Device) generate(gen Generator, sess session, tick time.Duration) {
	var err error
	defer func() {
		if e := recover(); e != nil {
			err = xerrors.Errorf("sim: panic in generation goroutine: %v", e)
		}
		sess.done <- err
	}()

	tck := time.NewTicker(tick)
	defer tck.Stop()

	var (
		last = sess.start
		recs []uint32
	)
	for dev.acquiring.Load() {
		<-tck.C
		var (
			now = time.Now()
			end = false
		)
		if sess.bounded {
			if deadline := sess.start.Add(sess.tacq); !now.Before(deadline) {
				now = deadline
				end = true
			}
		}
		recs = gen.Generate(recs[:0], now.Sub(last))
		dev.push(recs)
		last = now
		if end {
			return
		}
	}
}

func (dev *Device) push(recs []uint32) {
	if len(recs) == 0 {
		return
	}

	dev.fifo.Lock()
	defer dev.fifo.Unlock()

	dev.fifo.ngen += uint64(len(recs))
	n := len(recs)
	if free := dev.depth - len(dev.fifo.buf); n > free {
		n = free
		dev.fifo.lost += uint64(len(recs) - n)
		dev.fifo.warn |= mh.WarnCountsDropped
	}
	dev.fifo.buf = append(dev.fifo.buf, recs[:n]...)
}

// StopMeasurement stops the current measurement and waits for the
// generation goroutine to exit. The FIFO is not modified anymore once
// StopMeasurement has returned.
func (dev *Device) StopMeasurement() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if !dev.sess.running {
		return xerrors.Errorf("sim: could not stop measurement: %w", mh.ErrNotInitialized)
	}
	dev.acquiring.Store(false)
	dev.sess.running = false

	tmr := time.NewTimer(stopTimeout)
	defer tmr.Stop()

	select {
	case err := <-dev.sess.done:
		if err != nil {
			return xerrors.Errorf("sim: could not join generation goroutine (%v): %w", err, mh.ErrThreadStateFail)
		}
	case <-tmr.C:
		return xerrors.Errorf("sim: could not join generation goroutine (timeout=%v): %w", stopTimeout, mh.ErrThreadStateFail)
	}

	dev.fifo.RLock()
	ngen, lost := dev.fifo.ngen, dev.fifo.lost
	dev.fifo.RUnlock()

	dev.msg.Printf("device %s: measurement stopped (generated=%d, dropped=%d)", dev.serial, ngen, lost)
	return nil
}

// CTCStatus returns true while a measurement is running and, for bounded
// measurements, its acquisition time has not elapsed.
func (dev *Device) CTCStatus() (bool, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if !dev.sess.running {
		return false, nil
	}
	if dev.sess.bounded && time.Since(dev.sess.start) >= dev.sess.tacq {
		return false, nil
	}
	return true, nil
}

// ReadFIFO moves at most mh.TTReadMax records from the FIFO to the front
// of buf. Records that do not fit are kept for the next read.
func (dev *Device) ReadFIFO(buf []uint32) (int, error) {
	err := mh.CheckReadBuffer(buf)
	if err != nil {
		return 0, err
	}
	if dev.closed.Load() {
		return 0, mh.ErrDeviceNotOpen
	}

	dev.fifo.Lock()
	defer dev.fifo.Unlock()

	n := copy(buf[:mh.TTReadMax], dev.fifo.buf)
	rest := copy(dev.fifo.buf, dev.fifo.buf[n:])
	dev.fifo.buf = dev.fifo.buf[:rest]
	return n, nil
}

// Warnings returns the warnings of the current session.
// WarnCountsDropped is raised when the FIFO overflowed.
func (dev *Device) Warnings() (mh.Warning, error) {
	dev.mu.Lock()
	rate, srate, mode := dev.cfg.rate, dev.cfg.syncRate, dev.mode
	dev.mu.Unlock()

	var w mh.Warning
	switch {
	case srate == 0:
		w |= mh.WarnSyncRateZero
	case rate > 0.05*srate && mode == mh.T3:
		w |= mh.WarnInptRateRatio
	}
	if rate == 0 {
		w |= mh.WarnInptRateZero
	}

	dev.fifo.RLock()
	w |= dev.fifo.warn
	dev.fifo.RUnlock()

	return w, nil
}

func (dev *Device) Flags() (mh.Flag, error) {
	var flags mh.Flag
	active, err := dev.CTCStatus()
	if err != nil {
		return 0, err
	}
	if active {
		flags |= mh.FlagActive
	}

	dev.mu.Lock()
	if dev.cfg.syncRate == 0 {
		flags |= mh.FlagSyncLost
	}
	dev.mu.Unlock()

	dev.fifo.RLock()
	if dev.fifo.lost > 0 {
		flags |= mh.FlagFIFOFull | mh.FlagCountsDropped
	}
	dev.fifo.RUnlock()

	return flags, nil
}

// Generated returns the number of records generated during the current
// or last session, including dropped ones.
func (dev *Device) Generated() uint64 {
	dev.fifo.RLock()
	defer dev.fifo.RUnlock()
	return dev.fifo.ngen
}

// Dropped returns the number of records lost to FIFO overflows.
func (dev *Device) Dropped() uint64 {
	dev.fifo.RLock()
	defer dev.fifo.RUnlock()
	return dev.fifo.lost
}

// Pending returns the number of records waiting in the FIFO.
func (dev *Device) Pending() int {
	dev.fifo.RLock()
	defer dev.fifo.RUnlock()
	return len(dev.fifo.buf)
}

func (dev *Device) NumChannels() (int, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.cfg.channels, nil
}

func (dev *Device) SyncRate() (int, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return int(dev.cfg.syncRate), nil
}

func (dev *Device) CountRate(ch int) (int, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if ch < 0 || ch >= dev.cfg.channels {
		return 0, &mh.ArgumentError{
			Name: "channel", Value: ch,
			Msg: fmt.Sprintf("must be in [0, %d)", dev.cfg.channels),
		}
	}
	return int(dev.cfg.rate / float64(dev.cfg.channels)), nil
}

// set applies a configuration change, rejected while a measurement is running.
func (dev *Device) set(name string, f func(cfg *config) error) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.sess.running {
		return xerrors.Errorf("sim: could not set %s: %w", name, mh.ErrInstanceRunning)
	}
	return f(&dev.cfg)
}

// SetRate sets the mean count rate, in Hz.
func (dev *Device) SetRate(hz float64) error {
	return dev.set("rate", func(cfg *config) error {
		if hz < 0 {
			return &mh.ArgumentError{Name: "rate", Value: hz, Msg: "must be positive"}
		}
		cfg.rate = hz
		return nil
	})
}

// SetSyncRate sets the sync rate, in Hz.
func (dev *Device) SetSyncRate(hz float64) error {
	return dev.set("sync rate", func(cfg *config) error {
		if hz < 0 {
			return &mh.ArgumentError{Name: "sync rate", Value: hz, Msg: "must be positive"}
		}
		cfg.syncRate = hz
		return nil
	})
}

// SetTaus sets the lifetime components, in ns.
func (dev *Device) SetTaus(taus ...float64) error {
	return dev.set("taus", func(cfg *config) error {
		err := checkTaus(taus)
		if err != nil {
			return err
		}
		cfg.taus = append(cfg.taus[:0:0], taus...)
		return nil
	})
}

// SetGenerator replaces the event generator.
// A nil generator restores the default Poisson generator.
func (dev *Device) SetGenerator(gen Generator) error {
	return dev.set("generator", func(cfg *config) error {
		cfg.gen = gen
		return nil
	})
}

// TTTRMode returns the record layout of the device stream.
func (dev *Device) TTTRMode() tttr.Mode {
	mode, _ := dev.Mode().TTTR()
	return mode
}
