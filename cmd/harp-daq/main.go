// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command harp-daq runs a time-tagged acquisition on a MultiHarp device,
// or on a simulated one.
//
// Usage: harp-daq [OPTIONS]
//
// Example:
//
//	$> harp-daq -sim -tacq=2000 -policy=rwmutex
//	$> harp-daq -cfg=./harp.yaml -pmon -freq=500ms
//
// Options:
//
//	-alert      send a mail alert when the acquisition fails
//	-cfg        path to the YAML configuration file
//	-consumers  number of consumers
//	-cpu        CPU the acquisition thread is pinned to (default -1)
//	-freq       pmon frequency (default 1s)
//	-policy     hand-off policy (message, mutex, rwmutex)
//	-pmon       enable pmon monitoring
//	-sim        use a simulated device
//	-stats      period of the statistics report (default 1s)
//	-tacq       acquisition time (ms)
package main // import "github.com/go-lpc/harp/cmd/harp-daq"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/sbinet/pmon"
	"gonum.org/v1/gonum/stat"

	"github.com/go-lpc/harp/daq"
	"github.com/go-lpc/harp/internal/alert"
	"github.com/go-lpc/harp/internal/config"
	"github.com/go-lpc/harp/mh"
	"github.com/go-lpc/harp/mh/sim"
)

var (
	cfgFlag   = flag.String("cfg", "", "path to the YAML configuration file")
	simFlag   = flag.Bool("sim", false, "use a simulated device")
	tacqFlag  = flag.Int("tacq", 0, "acquisition time (ms)")
	polFlag   = flag.String("policy", "", "hand-off policy (message, mutex, rwmutex)")
	consFlag  = flag.Int("consumers", 0, "number of consumers")
	cpuFlag   = flag.Int("cpu", -1, "CPU the acquisition thread is pinned to")
	statsFlag = flag.Duration("stats", 1*time.Second, "period of the statistics report")
	alertFlag = flag.Bool("alert", false, "send a mail alert when the acquisition fails")

	doMon  = flag.Bool("pmon", false, "enable pmon monitoring")
	doFreq = flag.Duration("freq", 1*time.Second, "pmon frequency")

	stop = make(chan os.Signal, 1)
)

func main() {
	flag.Parse()

	log.SetPrefix("harp-daq: ")
	log.SetFlags(0)

	cfg := config.Default()
	if *cfgFlag != "" {
		var err error
		cfg, err = config.Load(*cfgFlag)
		if err != nil {
			log.Fatalf("could not load configuration: %+v", err)
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sim":
			if *simFlag {
				cfg.Device.Kind = "sim"
			}
		case "tacq":
			cfg.DAQ.TAcq = *tacqFlag
		case "policy":
			cfg.DAQ.Policy = *polFlag
		case "consumers":
			cfg.DAQ.Consumers = *consFlag
		case "cpu":
			cfg.DAQ.CPU = *cpuFlag
		}
	})
	if !*alertFlag {
		cfg.Alert = config.Alert{}
	}

	err := cfg.Validate()
	if err != nil {
		log.Fatalf("invalid configuration: %+v", err)
	}

	if *doMon {
		err = monitor(os.Getpid(), *doFreq)
		if err != nil {
			log.Fatalf("%+v", err)
		}
	}

	err = run(cfg, *statsFlag, stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

// monitor starts monitoring the resources used by the process pid.
// Monitoring lasts for the lifetime of the process.
func monitor(pid int, freq time.Duration) error {
	p, err := pmon.Monitor(pid)
	if err != nil {
		return fmt.Errorf("could not start monitoring (pid=%d): %w", pid, err)
	}

	fname := filepath.Join(os.TempDir(), fmt.Sprintf("harp-daq-%d-pmon.log", pid))
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		log.Printf("run pmon (log=%s)...", fname)
		err := p.Run()
		if err != nil {
			log.Printf("could not monitor process: %+v", err)
		}
	}()
	return nil
}

func open(cfg config.Config) (mh.Device, error) {
	switch cfg.Device.Kind {
	case "sim":
		reg := sim.NewRegistry(sim.WithLogger(log.New(log.Writer(), "sim: ", 0)))
		if cfg.Device.Serial != "" {
			return reg.OpenBySerial(cfg.Device.Serial, cfg.SimOptions()...)
		}
		return reg.Open(cfg.Device.Index, cfg.SimOptions()...)
	default:
		if cfg.Device.Serial != "" {
			return mh.OpenBySerial(cfg.Device.Serial)
		}
		return mh.Open(cfg.Device.Index)
	}
}

func run(cfg config.Config, freq time.Duration, stop chan os.Signal) (err error) {
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	dev, err := open(cfg)
	if err != nil {
		return fmt.Errorf("could not open device: %w", err)
	}
	defer func() {
		e := dev.Close()
		if e != nil && err == nil {
			err = fmt.Errorf("could not close device %s: %w", dev.Serial(), e)
		}
	}()

	mode, err := cfg.Device.TTTR()
	if err != nil {
		return err
	}
	err = dev.Init(mode, mh.RefClock(cfg.Device.Ref))
	if err != nil {
		return fmt.Errorf("could not initialize device %s: %w", dev.Serial(), err)
	}

	sess, err := daq.Start(dev, cfg.DAQ.TAcq, cfg.DAQOptions()...)
	if err != nil {
		return fmt.Errorf("could not start acquisition: %w", err)
	}

	var (
		tick  <-chan time.Time
		rates []float64
		last  daq.Report
	)
	if freq > 0 {
		tck := time.NewTicker(freq)
		defer tck.Stop()
		tick = tck.C
	}

loop:
	for {
		select {
		case <-sess.Done():
			break loop
		case <-stop:
			log.Printf("stop requested")
			break loop
		case <-tick:
			rep := sess.Stats()
			rate := float64(rep.Consumed.Events-last.Consumed.Events) / (rep.Elapsed - last.Elapsed).Seconds()
			rates = append(rates, rate)
			log.Printf(
				"events=%d rate=%.3e Hz reads=%d max-read=%v warnings=%v",
				rep.Consumed.Events, rate, rep.Loop.Reads, rep.Loop.MaxRead, rep.Loop.Warnings,
			)
			last = rep
		}
	}

	rep, err := sess.Stop()
	if len(rates) > 1 {
		mean, std := stat.MeanStdDev(rates, nil)
		log.Printf("rate: %.3e +/- %.3e Hz", mean, std)
	}
	log.Printf(
		"acquired %d events in %v (%.3e Hz)",
		rep.Consumed.Events, rep.Elapsed, rep.Rate(),
	)
	if err != nil {
		if cfg.Alert.Enabled() {
			m, e := alert.New(cfg.Alert)
			if e == nil {
				e = m.Send(dev.Serial(), rep, err)
			}
			if e != nil {
				log.Printf("%+v", e)
			}
		}
		return fmt.Errorf("could not run acquisition on device %s: %w", dev.Serial(), err)
	}
	return nil
}
