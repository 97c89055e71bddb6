// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tttr

// Clock reconstructs absolute time tags from an ordered stream of
// records, accumulating the wrap-arounds signalled by overflow markers.
//
// In T2 mode, time tags are in units of the device resolution.
// In T3 mode, time tags count sync periods since the start of the stream.
type Clock struct {
	mode Mode
	ofl  uint64
}

// NewClock returns a clock for a stream acquired in the given mode.
func NewClock(mode Mode) *Clock {
	switch mode {
	case T2, T3:
	default:
		panic("tttr: invalid clock mode " + mode.String())
	}
	return &Clock{mode: mode}
}

// Reset clears the accumulated overflow offset.
func (clk *Clock) Reset() { clk.ofl = 0 }

// Offset returns the accumulated overflow offset.
func (clk *Clock) Offset() uint64 { return clk.ofl }

// Next consumes r and returns its absolute time tag.
// ok is false for overflow markers, which carry no time tag.
func (clk *Clock) Next(r Record) (tag uint64, ok bool) {
	if r.IsOverflow() {
		n := uint64(r & SyncTagMask)
		wrap := uint64(T3Wrap)
		if clk.mode == T2 {
			n = uint64(r.ArrivalT2())
			wrap = T2Wrap
		}
		if n == 0 {
			// old firmwares emit one record per overflow.
			n = 1
		}
		clk.ofl += n * wrap
		return 0, false
	}

	switch clk.mode {
	case T2:
		return clk.ofl + uint64(r.ArrivalT2()), true
	default:
		return clk.ofl + uint64(r.Sync()), true
	}
}
