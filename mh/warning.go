// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mh

import "strings"

// Warning is a bitmask of non-fatal conditions reported by a device.
// Warnings never halt an acquisition.
type Warning int32

const (
	WarnSyncRateZero      Warning = 0x0001
	WarnSyncRateVeryLow   Warning = 0x0002
	WarnSyncRateTooHigh   Warning = 0x0004
	WarnInptRateZero      Warning = 0x0010
	WarnInptRateTooHigh   Warning = 0x0040
	WarnInptRateRatio     Warning = 0x0100
	WarnDividerGreaterOne Warning = 0x0200
	WarnTimeSpanTooSmall  Warning = 0x0400
	WarnOffsetUnnecessary Warning = 0x0800
	WarnDividerTooSmall   Warning = 0x1000
	WarnCountsDropped     Warning = 0x2000
)

var warnText = []struct {
	w   Warning
	txt string
}{
	{WarnSyncRateZero, "sync rate is zero"},
	{WarnSyncRateVeryLow, "sync rate is very low"},
	{WarnSyncRateTooHigh, "sync rate is too high"},
	{WarnInptRateZero, "input rate is zero"},
	{WarnInptRateTooHigh, "input rate is too high"},
	{WarnInptRateRatio, "input rate is too high compared to the sync rate"},
	{WarnDividerGreaterOne, "sync divider is greater than one"},
	{WarnTimeSpanTooSmall, "histogram time span is too small"},
	{WarnOffsetUnnecessary, "offset is unnecessary"},
	{WarnDividerTooSmall, "sync divider is too small"},
	{WarnCountsDropped, "counts were dropped"},
}

// Has returns whether all the bits of v are set in w.
func (w Warning) Has(v Warning) bool { return w&v == v }

func (w Warning) String() string {
	if w == 0 {
		return "none"
	}
	var txt []string
	for _, v := range warnText {
		if w.Has(v.w) {
			txt = append(txt, v.txt)
			w &^= v.w
		}
	}
	if w != 0 {
		txt = append(txt, "unknown warning bits")
	}
	return strings.Join(txt, "; ")
}
