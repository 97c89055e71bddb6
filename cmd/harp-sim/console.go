// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/go-lpc/harp/mh"
	"github.com/go-lpc/harp/mh/sim"
	"github.com/go-lpc/harp/tttr"
)

type command struct {
	name string
	args string
	help string
}

var commands = []command{
	{"open", "[index]", "open a simulated device"},
	{"close", "", "close the device"},
	{"init", "t2|t3 [ref]", "initialize the device"},
	{"rate", "hz", "set the mean photon rate"},
	{"sync", "hz", "set the sync rate"},
	{"taus", "ns...", "set the fluorescence lifetimes"},
	{"start", "ms", "start a measurement"},
	{"ctc", "", "display the CTC status"},
	{"read", "[n]", "read the FIFO and display the first n events"},
	{"stop", "", "stop the measurement"},
	{"status", "", "display warnings, flags and rates"},
	{"help", "", "display this help"},
	{"quit", "", "quit"},
}

type console struct {
	w    io.Writer
	reg  *sim.Registry
	dev  *sim.Device
	buf  []uint32
	opts []sim.Option
}

func newConsole(w io.Writer, opts ...sim.Option) *console {
	return &console{
		w:    w,
		reg:  sim.NewRegistry(sim.WithLogger(log.New(w, "sim: ", 0))),
		opts: opts,
	}
}

func (con *console) close() {
	if con.dev == nil {
		return
	}
	err := con.dev.Close()
	if err != nil {
		log.Printf("could not close device: %+v", err)
	}
	con.dev = nil
}

// exec executes a command line and reports whether the console should quit.
func (con *console) exec(line string) (bool, error) {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return false, nil
	}
	name, args := toks[0], toks[1:]

	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		for _, cmd := range commands {
			fmt.Fprintf(con.w, "  %-7s %-12s %s\n", cmd.name, cmd.args, cmd.help)
		}
		return false, nil
	case "open":
		return false, con.open(args)
	}

	if con.dev == nil {
		return false, fmt.Errorf("could not run %q: %w", name, mh.ErrDeviceNotOpen)
	}

	switch name {
	case "close":
		con.close()
		return false, nil
	case "init":
		return false, con.init(args)
	case "rate":
		return false, con.setf(args, con.dev.SetRate)
	case "sync":
		return false, con.setf(args, con.dev.SetSyncRate)
	case "taus":
		taus, err := floats(args)
		if err != nil {
			return false, err
		}
		return false, con.dev.SetTaus(taus...)
	case "start":
		if len(args) != 1 {
			return false, fmt.Errorf("start: missing acquisition time")
		}
		ms, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("start: invalid acquisition time %q: %w", args[0], err)
		}
		return false, con.dev.StartMeasurement(ms)
	case "ctc":
		ok, err := con.dev.CTCStatus()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(con.w, "running: %v\n", ok)
		return false, nil
	case "read":
		return false, con.read(args)
	case "stop":
		return false, con.dev.StopMeasurement()
	case "status":
		return false, con.status()
	default:
		return false, fmt.Errorf("unknown command %q", name)
	}
}

func (con *console) open(args []string) error {
	if con.dev != nil {
		return fmt.Errorf("open: device %s already open", con.dev.Serial())
	}
	idx := 0
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("open: invalid device index %q: %w", args[0], err)
		}
		idx = v
	}
	dev, err := con.reg.Open(idx, con.opts...)
	if err != nil {
		return err
	}
	con.dev = dev
	fmt.Fprintf(con.w, "device %d open (serial=%s)\n", dev.Index(), dev.Serial())
	return nil
}

func (con *console) init(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("init: missing acquisition mode")
	}
	var mode mh.Mode
	switch strings.ToLower(args[0]) {
	case "t2":
		mode = mh.T2
	case "t3":
		mode = mh.T3
	default:
		return fmt.Errorf("init: invalid acquisition mode %q", args[0])
	}
	ref := mh.Internal
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("init: invalid reference clock %q: %w", args[1], err)
		}
		ref = mh.RefClock(v)
	}
	return con.dev.Init(mode, ref)
}

func (con *console) setf(args []string, set func(float64) error) error {
	vs, err := floats(args)
	if err != nil {
		return err
	}
	if len(vs) != 1 {
		return fmt.Errorf("expected exactly one value")
	}
	return set(vs[0])
}

func (con *console) read(args []string) error {
	n := 8
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("read: invalid number of events %q: %w", args[0], err)
		}
		n = v
	}
	if con.buf == nil {
		con.buf = make([]uint32, mh.TTReadMax)
	}

	nrecs, err := con.dev.ReadFIFO(con.buf)
	if err != nil {
		return err
	}
	fmt.Fprintf(con.w, "read %d records (pending=%d)\n", nrecs, con.dev.Pending())

	mode := con.dev.TTTRMode()
	for i, raw := range con.buf[:nrecs] {
		if i >= n {
			break
		}
		evt := tttr.Decode(tttr.Record(raw), mode)
		switch {
		case evt.Special:
			fmt.Fprintf(con.w, "  [%03d] special ch=0x%02x arrival=%d sync=%d\n", i, evt.Channel, evt.Arrival, evt.Sync)
		default:
			fmt.Fprintf(con.w, "  [%03d] photon  ch=%d arrival=%d sync=%d\n", i, evt.Channel, evt.Arrival, evt.Sync)
		}
	}
	return nil
}

func (con *console) status() error {
	warn, err := con.dev.Warnings()
	if err != nil {
		return err
	}
	flags, err := con.dev.Flags()
	if err != nil {
		return err
	}
	sync, err := con.dev.SyncRate()
	if err != nil {
		return err
	}
	nchans, err := con.dev.NumChannels()
	if err != nil {
		return err
	}

	fmt.Fprintf(con.w, "warnings:  %v\n", warn)
	fmt.Fprintf(con.w, "flags:     0x%04x\n", int32(flags))
	fmt.Fprintf(con.w, "sync:      %d Hz\n", sync)
	for ch := 0; ch < nchans; ch++ {
		rate, err := con.dev.CountRate(ch)
		if err != nil {
			return err
		}
		fmt.Fprintf(con.w, "channel %d: %d Hz\n", ch, rate)
	}
	fmt.Fprintf(con.w, "generated: %d (dropped=%d)\n", con.dev.Generated(), con.dev.Dropped())
	return nil
}

func floats(args []string) ([]float64, error) {
	vs := make([]float64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", arg, err)
		}
		vs[i] = v
	}
	return vs, nil
}
