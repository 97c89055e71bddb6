// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"log"
	"os"
	"time"

	"github.com/go-lpc/harp/mh"
)

// Default parameters of simulated devices.
const (
	DefaultRate     = 1e5  // mean count rate (Hz)
	DefaultSyncRate = 80e6 // sync rate (Hz)
	DefaultTau      = 2.0  // fluorescence lifetime (ns)
	DefaultChannels = 4
)

const (
	defaultSerial     = 1044272
	defaultResolution = 5.0 // ps
	defaultTick       = 1 * time.Millisecond
	defaultFIFODepth  = 16 * mh.TTReadMax
)

type config struct {
	msg *log.Logger

	rate     float64   // mean count rate (Hz)
	syncRate float64   // sync rate (Hz)
	taus     []float64 // lifetime components (ns)
	channels int
	res      float64 // base resolution (ps)
	seed     uint64
	gen      Generator

	tick    time.Duration
	depth   int // FIFO capacity, in records
	control mh.Control
}

func newConfig() config {
	return config{
		msg:      log.New(os.Stdout, "sim: ", 0),
		rate:     DefaultRate,
		syncRate: DefaultSyncRate,
		taus:     []float64{DefaultTau},
		channels: DefaultChannels,
		res:      defaultResolution,
		seed:     1234,
		tick:     defaultTick,
		depth:    defaultFIFODepth,
		control:  mh.SingleShotCTC,
	}
}

// Option configures a simulated device.
type Option func(*config)

// WithLogger sets the logger of the simulated device.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithRate sets the mean photon count rate, in Hz.
func WithRate(hz float64) Option {
	return func(cfg *config) {
		cfg.rate = hz
	}
}

// WithSyncRate sets the sync (laser) rate, in Hz.
func WithSyncRate(hz float64) Option {
	return func(cfg *config) {
		cfg.syncRate = hz
	}
}

// WithTaus sets the lifetime components of the simulated sample, in ns.
func WithTaus(taus ...float64) Option {
	return func(cfg *config) {
		cfg.taus = append([]float64(nil), taus...)
	}
}

// WithChannels sets the number of input channels.
func WithChannels(n int) Option {
	return func(cfg *config) {
		cfg.channels = n
	}
}

// WithSeed sets the seed of the default event generator.
func WithSeed(seed uint64) Option {
	return func(cfg *config) {
		cfg.seed = seed
	}
}

// WithGenerator replaces the default Poisson generator.
func WithGenerator(gen Generator) Option {
	return func(cfg *config) {
		cfg.gen = gen
	}
}

// WithTick sets the period of the generation goroutine.
func WithTick(d time.Duration) Option {
	return func(cfg *config) {
		cfg.tick = d
	}
}

// WithFIFODepth sets the capacity of the simulated hardware FIFO.
// Records generated while the FIFO is full are dropped.
func WithFIFODepth(n int) Option {
	return func(cfg *config) {
		cfg.depth = n
	}
}

// WithControl sets the measurement control mode.
func WithControl(ctl mh.Control) Option {
	return func(cfg *config) {
		cfg.control = ctl
	}
}
