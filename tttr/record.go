// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tttr encodes and decodes the 32-bit time-tagged time-resolved
// (TTTR) event records emitted by MultiHarp devices.
//
// A record has no knowledge of the measurement mode it was produced in:
// the low 25 bits hold either a T2 arrival tag or a T3 (arrival, sync)
// pair, and the mode has to be provided by the caller.
package tttr // import "github.com/go-lpc/harp/tttr"

import "fmt"

// Mode is the time-tagging mode a stream of records was acquired with.
type Mode uint8

const (
	T2 Mode = 2
	T3 Mode = 3
)

func (m Mode) String() string {
	switch m {
	case T2:
		return "T2"
	case T3:
		return "T3"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Bit layout of a record.
const (
	SpecialMask   = 0x80000000 // bit 31
	ChannelMask   = 0x7e000000 // bits 25-30
	ArrivalT2Mask = 0x01ffffff // bits 0-24
	ArrivalT3Mask = 0x01fffc00 // bits 10-24
	SyncTagMask   = 0x000003ff // bits 0-9

	channelShift   = 25
	arrivalT3Shift = 10
)

const (
	// OverflowChannel is the channel field of an overflow marker.
	OverflowChannel = 0x3f

	// T2Wrap is the period of the T2 arrival tag.
	T2Wrap = 1 << 25
	// T3Wrap is the period of the T3 sync counter.
	T3Wrap = 1 << 10
)

// Record is a raw TTTR event record.
type Record uint32

func (r Record) Special() bool     { return r&SpecialMask != 0 }
func (r Record) Channel() uint8    { return uint8((r & ChannelMask) >> channelShift) }
func (r Record) ArrivalT2() uint32 { return uint32(r & ArrivalT2Mask) }
func (r Record) ArrivalT3() uint16 { return uint16((r & ArrivalT3Mask) >> arrivalT3Shift) }
func (r Record) Sync() uint16      { return uint16(r & SyncTagMask) }

// IsOverflow returns whether r is an overflow marker.
func (r Record) IsOverflow() bool {
	return r.Special() && r.Channel() == OverflowChannel
}

// IsMarker returns whether r is an external marker record.
func (r Record) IsMarker() bool {
	if !r.Special() {
		return false
	}
	ch := r.Channel()
	return ch >= 1 && ch <= 15
}

// Event is a decoded TTTR record.
type Event struct {
	Special bool
	Channel uint8  // detection channel, or marker bits for special records
	Arrival uint32 // 25-bit tag in T2 mode, 15-bit tag in T3 mode
	Sync    uint16 // 10-bit sync counter, T3 mode only
}

// Decode decodes r according to mode.
// Decode panics if mode is neither T2 nor T3.
func Decode(r Record, mode Mode) Event {
	evt := Event{
		Special: r.Special(),
		Channel: r.Channel(),
	}
	switch mode {
	case T2:
		evt.Arrival = r.ArrivalT2()
	case T3:
		evt.Arrival = uint32(r.ArrivalT3())
		evt.Sync = r.Sync()
	default:
		panic(fmt.Errorf("tttr: invalid mode %v", mode))
	}
	return evt
}

// Encode encodes evt according to mode.
// Fields are truncated to their bit width.
// Encode panics if mode is neither T2 nor T3.
func Encode(evt Event, mode Mode) Record {
	var r uint32
	if evt.Special {
		r |= SpecialMask
	}
	r |= (uint32(evt.Channel) << channelShift) & ChannelMask
	switch mode {
	case T2:
		r |= evt.Arrival & ArrivalT2Mask
	case T3:
		r |= (evt.Arrival << arrivalT3Shift) & ArrivalT3Mask
		r |= uint32(evt.Sync) & SyncTagMask
	default:
		panic(fmt.Errorf("tttr: invalid mode %v", mode))
	}
	return Record(r)
}
