// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/go-lpc/harp/tttr"
)

// Generator synthesizes the records a device produces during an interval.
//
// A Generator is only ever used by one goroutine at a time.
type Generator interface {
	// Generate appends to dst the records produced during dt
	// and returns the extended slice.
	Generate(dst []uint32, dt time.Duration) []uint32
}

var (
	_ Generator = (*Poisson)(nil)
	_ Generator = (*Pattern)(nil)
)

// Poisson generates photon records with Poisson-distributed counts
// and arrival times drawn from a mixture of exponential lifetimes.
type Poisson struct {
	mode     tttr.Mode
	rate     float64 // Hz
	channels int
	nbins    uint32 // number of arrival bins within a sync period

	src  rand.Source
	rnd  *rand.Rand
	exps []distuv.Exponential
	res  float64 // ps
}

// PoissonConfig describes the statistics of a Poisson generator.
type PoissonConfig struct {
	Mode       tttr.Mode
	Rate       float64   // mean count rate (Hz)
	SyncRate   float64   // sync rate (Hz), used in T3 mode
	Taus       []float64 // lifetime components (ns)
	Channels   int
	Resolution float64 // ps
}

// NewPoisson returns a Poisson generator seeded with seed.
func NewPoisson(cfg PoissonConfig, seed uint64) *Poisson {
	src := rand.NewSource(seed)
	gen := &Poisson{
		mode:     cfg.Mode,
		rate:     cfg.Rate,
		channels: cfg.Channels,
		nbins:    1 << 15,
		src:      src,
		rnd:      rand.New(src),
		res:      cfg.Resolution,
	}
	if gen.channels <= 0 {
		gen.channels = 1
	}
	if gen.res <= 0 {
		gen.res = defaultResolution
	}
	if cfg.SyncRate > 0 {
		period := 1e12 / cfg.SyncRate // ps
		if n := period / gen.res; n >= 1 && n < float64(gen.nbins) {
			gen.nbins = uint32(n)
		}
	}
	for _, tau := range cfg.Taus {
		if tau <= 0 {
			continue
		}
		gen.exps = append(gen.exps, distuv.Exponential{Rate: 1 / tau, Src: src})
	}
	return gen
}

// Count draws the number of photons detected during dt.
func (gen *Poisson) Count(dt time.Duration) int {
	lambda := gen.rate * dt.Seconds()
	if lambda <= 0 {
		return 0
	}
	pois := distuv.Poisson{Lambda: lambda, Src: gen.src}
	return int(pois.Rand())
}

func (gen *Poisson) Generate(dst []uint32, dt time.Duration) []uint32 {
	n := gen.Count(dt)
	for i := 0; i < n; i++ {
		dst = append(dst, uint32(gen.photon()))
	}
	return dst
}

func (gen *Poisson) photon() tttr.Record {
	evt := tttr.Event{
		Channel: uint8(gen.rnd.Intn(gen.channels)),
	}
	switch gen.mode {
	case tttr.T2:
		evt.Arrival = gen.rnd.Uint32() & tttr.ArrivalT2Mask
	default:
		evt.Arrival = gen.dtime()
		evt.Sync = uint16(gen.rnd.Intn(tttr.T3Wrap))
	}
	return tttr.Encode(evt, gen.mode)
}

// dtime returns the arrival bin of a photon relative to its sync pulse.
func (gen *Poisson) dtime() uint32 {
	if len(gen.exps) == 0 {
		return uint32(gen.rnd.Intn(int(gen.nbins)))
	}
	exp := gen.exps[0]
	if len(gen.exps) > 1 {
		exp = gen.exps[gen.rnd.Intn(len(gen.exps))]
	}
	bin := math.Floor(exp.Rand() * 1e3 / gen.res)
	return uint32(math.Mod(bin, float64(gen.nbins)))
}

// Pattern generates a deterministic stream of photon records whose low
// 25 bits hold a sequence number, starting at zero.
//
// In T3 mode the sequence number spans the (arrival, sync) fields, so
// that records can be checked for ordering and completeness downstream.
type Pattern struct {
	Mode    tttr.Mode
	Channel uint8

	// Rate is the emission rate in Hz.
	// When Rate is zero, N records are emitted on each call.
	Rate float64
	N    int

	seq  uint32
	frac float64
}

// Seq returns the sequence number carried by a Pattern record.
func Seq(r uint32) uint32 {
	return r & tttr.ArrivalT2Mask
}

// Emitted returns the number of records emitted so far.
func (gen *Pattern) Emitted() uint32 { return gen.seq }

func (gen *Pattern) Generate(dst []uint32, dt time.Duration) []uint32 {
	n := gen.N
	if gen.Rate > 0 {
		v := gen.Rate*dt.Seconds() + gen.frac
		n = int(v)
		gen.frac = v - float64(n)
	}
	mode := gen.Mode
	if mode == 0 {
		mode = tttr.T3
	}
	for i := 0; i < n; i++ {
		seq := gen.seq & tttr.ArrivalT2Mask
		evt := tttr.Event{Channel: gen.Channel}
		switch mode {
		case tttr.T2:
			evt.Arrival = seq
		default:
			evt.Arrival = seq >> 10
			evt.Sync = uint16(seq & tttr.SyncTagMask)
		}
		dst = append(dst, uint32(tttr.Encode(evt, mode)))
		gen.seq++
	}
	return dst
}
