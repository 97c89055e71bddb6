// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/go-lpc/harp/tttr"
)

// Processor is applied by consumers to each non-empty batch.
// A batch and its records are owned by the processor.
type Processor func(b Batch) error

// Stats holds the statistics aggregated by consumers.
type Stats struct {
	Batches   uint64 // number of non-empty batches processed
	Events    uint64 // number of records
	Photons   uint64 // number of photon records
	Specials  uint64 // number of special records (overflows, markers, syncs)
	Overflows uint64 // number of overflow records
	Markers   uint64 // number of external marker records
}

func (st Stats) add(o Stats) Stats {
	st.Batches += o.Batches
	st.Events += o.Events
	st.Photons += o.Photons
	st.Specials += o.Specials
	st.Overflows += o.Overflows
	st.Markers += o.Markers
	return st
}

// Consumer drains a hand-off and aggregates statistics.
type Consumer struct {
	msg  *log.Logger
	proc Processor
	err  error

	stats struct {
		batches   atomic.Uint64
		events    atomic.Uint64
		specials  atomic.Uint64
		overflows atomic.Uint64
		markers   atomic.Uint64
	}
}

// NewConsumer creates a consumer applying proc to each batch.
// proc may be nil.
func NewConsumer(proc Processor, opts ...Option) *Consumer {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Consumer{msg: cfg.msg, proc: proc}
}

// Run drains h until it is closed.
//
// A processor error stops the processing of further batches, which are
// still drained and counted, and is returned once h is closed.
func (c *Consumer) Run(h Handoff) error {
	var (
		batches []Batch
		ok      = true
	)
	for ok {
		batches, ok = h.Next(batches[:0])
		for i, b := range batches {
			c.process(b)
			batches[i] = Batch{}
		}
	}
	return c.err
}

func (c *Consumer) process(b Batch) {
	if b.Len() == 0 {
		return
	}

	var special, ofl, mrk uint64
	for _, raw := range b.Recs {
		r := tttr.Record(raw)
		if !r.Special() {
			continue
		}
		special++
		switch {
		case r.IsOverflow():
			ofl++
		case r.IsMarker():
			mrk++
		}
	}

	c.stats.batches.Add(1)
	c.stats.events.Add(uint64(b.Len()))
	c.stats.specials.Add(special)
	c.stats.overflows.Add(ofl)
	c.stats.markers.Add(mrk)

	if c.proc == nil || c.err != nil {
		return
	}
	err := c.proc(b)
	if err != nil {
		c.err = fmt.Errorf("daq: could not process batch %d: %w", b.Seq, err)
		c.msg.Printf("%+v", c.err)
	}
}

// Stats returns a snapshot of the consumer statistics.
// Stats is safe to call concurrently with Run.
func (c *Consumer) Stats() Stats {
	st := Stats{
		Batches:   c.stats.batches.Load(),
		Events:    c.stats.events.Load(),
		Specials:  c.stats.specials.Load(),
		Overflows: c.stats.overflows.Load(),
		Markers:   c.stats.markers.Load(),
	}
	st.Photons = st.Events - st.Specials
	return st
}
