// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/harp/mh"
	"github.com/go-lpc/harp/mh/sim"
	"github.com/go-lpc/harp/tttr"
)

func TestConsole(t *testing.T) {
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	out := new(bytes.Buffer)
	con := newConsole(out, sim.WithGenerator(&sim.Pattern{Mode: tttr.T3, N: 10}))
	defer con.close()

	_, err := con.exec("start 100")
	if !errors.Is(err, mh.ErrDeviceNotOpen) {
		t.Fatalf("invalid error: got=%v, want=%v", err, mh.ErrDeviceNotOpen)
	}

	for _, tc := range []struct {
		line string
		want string
		err  bool
	}{
		{line: "help", want: "open a simulated device"},
		{line: "open 2", want: "device 2 open (serial=1044274)"},
		{line: "open 1", err: true},
		{line: "init t4", err: true},
		{line: "init t3 0"},
		{line: "rate 2e5"},
		{line: "rate", err: true},
		{line: "sync abc", err: true},
		{line: "taus 1.5 3"},
		{line: "taus -1", err: true},
		{line: "start", err: true},
		{line: "start 0", err: true},
		{line: "start 50"},
		{line: "rate 1e3", err: true},
		{line: "ctc", want: "running:"},
		{line: "status", want: "channel 3: 50000 Hz"},
		{line: "frobnicate", err: true},
	} {
		out.Reset()
		quit, err := con.exec(tc.line)
		switch {
		case err != nil && !tc.err:
			t.Fatalf("could not run %q: %+v", tc.line, err)
		case err == nil && tc.err:
			t.Fatalf("expected an error running %q", tc.line)
		}
		if quit {
			t.Fatalf("console quit on %q", tc.line)
		}
		if !strings.Contains(out.String(), tc.want) {
			t.Fatalf("invalid output for %q:\ngot= %q\nwant=%q", tc.line, out.String(), tc.want)
		}
	}

	time.Sleep(100 * time.Millisecond)

	for _, line := range []string{"stop", "read 3"} {
		out.Reset()
		_, err = con.exec(line)
		if err != nil {
			t.Fatalf("could not run %q: %+v", line, err)
		}
	}
	if !strings.Contains(out.String(), "photon  ch=0 arrival=0 sync=2") {
		t.Fatalf("invalid read output:\n%s", out.String())
	}
	if got := strings.Count(out.String(), "photon"); got != 3 {
		t.Fatalf("invalid number of displayed events: got=%d, want=3", got)
	}

	_, err = con.exec("close")
	if err != nil {
		t.Fatalf("could not close device: %+v", err)
	}
	_, err = con.exec("ctc")
	if !errors.Is(err, mh.ErrDeviceNotOpen) {
		t.Fatalf("invalid error: got=%v, want=%v", err, mh.ErrDeviceNotOpen)
	}

	quit, err := con.exec("quit")
	if err != nil || !quit {
		t.Fatalf("invalid quit: quit=%v, err=%v", quit, err)
	}
}

func TestComplete(t *testing.T) {
	got := complete("st")
	if len(got) != 3 || got[0] != "start" || got[1] != "stop" || got[2] != "status" {
		t.Fatalf("invalid completion: %q", got)
	}
}
