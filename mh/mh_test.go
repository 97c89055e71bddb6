// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mh

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-lpc/harp/tttr"
)

func TestError(t *testing.T) {
	for _, tc := range []struct {
		err  Error
		want string
	}{
		{0, "mh: no error"},
		{ErrNotInitialized, "mh: not initialized (code=-22)"},
		{ErrFIFOResetFail, "mh: FIFO reset failed (code=-28)"},
		{Error(-66), "mh: EEPROM failure F03 (code=-66)"},
		{Error(-500), "mh: invalid error code (code=-500)"},
	} {
		t.Run(fmt.Sprintf("%d", int32(tc.err)), func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("invalid error text:\ngot= %q\nwant=%q", got, tc.want)
			}
		})
	}

	if err := Code(0); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if err := Code(-16); !errors.Is(err, ErrInstanceRunning) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrInstanceRunning)
	}
}

func TestChecks(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want string
	}{
		{"index-ok", CheckIndex(7), ""},
		{"index-neg", CheckIndex(-1), "mh: invalid argument index=-1: must be in [0, 8)"},
		{"index-max", CheckIndex(MaxDevNum), "mh: invalid argument index=8: must be in [0, 8)"},
		{"serial-ok", CheckSerial("1044272"), ""},
		{"serial-long", CheckSerial("123456789"), "mh: invalid argument serial=123456789: must be at most 8 characters long"},
		{"tacq-min", CheckAcqTime(AcqTMin), ""},
		{"tacq-max", CheckAcqTime(AcqTMax), ""},
		{"tacq-zero", CheckAcqTime(0), "mh: invalid argument acquisition time=0: must be in [1, 360000000] ms"},
		{"tacq-over", CheckAcqTime(AcqTMax + 1), "mh: invalid argument acquisition time=360000001: must be in [1, 360000000] ms"},
		{"buf-ok", CheckReadBuffer(make([]uint32, TTReadMax)), ""},
		{"buf-short", CheckReadBuffer(make([]uint32, 10)), "mh: invalid argument buffer length=10: must be at least TTReadMax=1048576"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			switch {
			case tc.want == "" && tc.err != nil:
				t.Fatalf("unexpected error: %+v", tc.err)
			case tc.want == "":
				return
			case tc.err == nil:
				t.Fatalf("expected an error")
			}
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, tc.want)
			}
			var aerr *ArgumentError
			if !errors.As(tc.err, &aerr) {
				t.Fatalf("expected an argument error, got %T", tc.err)
			}
			if !errors.Is(tc.err, ErrInvalidArgument) {
				t.Fatalf("argument error should match ErrInvalidArgument")
			}
		})
	}
}

func TestWarning(t *testing.T) {
	for _, tc := range []struct {
		w    Warning
		want string
	}{
		{0, "none"},
		{WarnCountsDropped, "counts were dropped"},
		{WarnSyncRateZero | WarnInptRateZero, "sync rate is zero; input rate is zero"},
		{WarnDividerTooSmall | 0x8, "sync divider is too small; unknown warning bits"},
	} {
		if got := tc.w.String(); got != tc.want {
			t.Fatalf("invalid warning text for 0x%x:\ngot= %q\nwant=%q", int32(tc.w), got, tc.want)
		}
	}

	w := WarnCountsDropped | WarnSyncRateTooHigh
	if !w.Has(WarnCountsDropped) {
		t.Fatalf("missing counts-dropped bit")
	}
	if w.Has(WarnCountsDropped | WarnInptRateZero) {
		t.Fatalf("unexpected input-rate-zero bit")
	}
}

func TestMode(t *testing.T) {
	for _, tc := range []struct {
		mode Mode
		want tttr.Mode
		ok   bool
	}{
		{Histogramming, 0, false},
		{T2, tttr.T2, true},
		{T3, tttr.T3, true},
		{Mode(42), 0, false},
	} {
		got, ok := tc.mode.TTTR()
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%v: got=(%v, %v), want=(%v, %v)", tc.mode, got, ok, tc.want, tc.ok)
		}
	}

	if !SingleShotCTC.Bounded() || SwStartSwStop.Bounded() {
		t.Fatalf("invalid bounded control modes")
	}
}
