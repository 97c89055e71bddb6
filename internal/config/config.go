// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config handles the YAML configuration of harp commands.
package config // import "github.com/go-lpc/harp/internal/config"

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/go-lpc/harp/daq"
	"github.com/go-lpc/harp/mh"
	"github.com/go-lpc/harp/mh/sim"
)

// Config is the configuration of an acquisition.
type Config struct {
	Device Device `yaml:"device"`
	Sim    Sim    `yaml:"sim"`
	DAQ    DAQ    `yaml:"daq"`
	Alert  Alert  `yaml:"alert"`
}

// Device selects and initializes a device.
type Device struct {
	Kind   string `yaml:"kind"`   // sim or hw
	Index  int    `yaml:"index"`  // device index, used when Serial is empty
	Serial string `yaml:"serial"` // device serial number
	Mode   string `yaml:"mode"`   // t2 or t3
	Ref    int    `yaml:"ref"`    // reference clock
}

// Sim configures the simulated device.
type Sim struct {
	Rate     float64   `yaml:"rate"`      // mean photon rate (Hz)
	SyncRate float64   `yaml:"sync_rate"` // sync rate (Hz)
	Taus     []float64 `yaml:"taus"`      // fluorescence lifetimes (ns)
	Channels int       `yaml:"channels"`
	Seed     uint64    `yaml:"seed"`
	Control  int       `yaml:"control"` // measurement control mode
}

// DAQ configures the acquisition session.
type DAQ struct {
	Policy    string        `yaml:"policy"` // message, mutex or rwmutex
	Consumers int           `yaml:"consumers"`
	CPU       int           `yaml:"cpu"`  // CPU of the acquisition thread, -1 for none
	TAcq      int           `yaml:"tacq"` // acquisition time (ms)
	Poll      time.Duration `yaml:"poll"`
	Warnings  time.Duration `yaml:"warnings"`
}

// Alert configures the mail sent when an acquisition fails.
type Alert struct {
	Host string   `yaml:"host"`
	Port int      `yaml:"port"`
	User string   `yaml:"user"`
	Pass string   `yaml:"pass"`
	From string   `yaml:"from"`
	To   []string `yaml:"to"`
}

// Enabled returns whether alerts should be sent.
func (a Alert) Enabled() bool {
	return a.Host != "" && len(a.To) > 0
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Device: Device{
			Kind: "sim",
			Mode: "t3",
			Ref:  int(mh.Internal),
		},
		Sim: Sim{
			Rate:     sim.DefaultRate,
			SyncRate: sim.DefaultSyncRate,
			Taus:     []float64{sim.DefaultTau},
			Channels: sim.DefaultChannels,
			Seed:     1234,
			Control:  int(mh.SingleShotCTC),
		},
		DAQ: DAQ{
			Policy:    daq.MessagePolicy.String(),
			Consumers: 1,
			CPU:       -1,
			TAcq:      1000,
			Poll:      time.Millisecond,
			Warnings:  time.Second,
		},
		Alert: Alert{
			Port: 587,
		},
	}
}

// Load reads the configuration from the named file.
// Missing values take their default.
func Load(fname string) (Config, error) {
	f, err := os.Open(fname)
	if err != nil {
		return Config{}, fmt.Errorf("config: could not open config file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read reads the configuration from r.
func Read(r io.Reader) (Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("config: could not read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	err = dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: could not decode config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (cfg Config) Validate() error {
	switch cfg.Device.Kind {
	case "sim", "hw":
	default:
		return fmt.Errorf("invalid device kind %q", cfg.Device.Kind)
	}
	if cfg.Device.Serial == "" {
		err := mh.CheckIndex(cfg.Device.Index)
		if err != nil {
			return err
		}
	} else {
		err := mh.CheckSerial(cfg.Device.Serial)
		if err != nil {
			return err
		}
	}
	_, err := cfg.Device.TTTR()
	if err != nil {
		return err
	}
	if cfg.Device.Ref < int(mh.Internal) || cfg.Device.Ref > int(mh.WRGrandMasterMHarp) {
		return fmt.Errorf("invalid reference clock %d", cfg.Device.Ref)
	}

	if cfg.Device.Kind == "sim" {
		switch {
		case cfg.Sim.Rate < 0:
			return fmt.Errorf("invalid sim rate %v", cfg.Sim.Rate)
		case cfg.Sim.SyncRate < 0:
			return fmt.Errorf("invalid sim sync rate %v", cfg.Sim.SyncRate)
		case cfg.Sim.Channels < 1 || cfg.Sim.Channels > 64:
			return fmt.Errorf("invalid sim number of channels %d", cfg.Sim.Channels)
		case len(cfg.Sim.Taus) == 0:
			return fmt.Errorf("invalid sim lifetimes: no lifetime")
		}
		for _, tau := range cfg.Sim.Taus {
			if tau <= 0 {
				return fmt.Errorf("invalid sim lifetime %v", tau)
			}
		}
		if cfg.Sim.Control < int(mh.SingleShotCTC) || cfg.Sim.Control > int(mh.SwStartSwStop) {
			return fmt.Errorf("invalid sim control mode %d", cfg.Sim.Control)
		}
	}

	_, err = daq.ParsePolicy(cfg.DAQ.Policy)
	if err != nil {
		return err
	}
	if cfg.DAQ.Consumers < 1 {
		return fmt.Errorf("invalid number of consumers %d", cfg.DAQ.Consumers)
	}
	if cfg.DAQ.Poll <= 0 {
		return fmt.Errorf("invalid poll period %v", cfg.DAQ.Poll)
	}
	if cfg.DAQ.Warnings < 0 {
		return fmt.Errorf("invalid warnings period %v", cfg.DAQ.Warnings)
	}
	return mh.CheckAcqTime(cfg.DAQ.TAcq)
}

// TTTR returns the acquisition mode of the device.
func (dev Device) TTTR() (mh.Mode, error) {
	switch dev.Mode {
	case "t2", "T2":
		return mh.T2, nil
	case "t3", "T3":
		return mh.T3, nil
	default:
		return 0, fmt.Errorf("invalid acquisition mode %q", dev.Mode)
	}
}

// SimOptions returns the options of the simulated device.
func (cfg Config) SimOptions() []sim.Option {
	return []sim.Option{
		sim.WithRate(cfg.Sim.Rate),
		sim.WithSyncRate(cfg.Sim.SyncRate),
		sim.WithTaus(cfg.Sim.Taus...),
		sim.WithChannels(cfg.Sim.Channels),
		sim.WithSeed(cfg.Sim.Seed),
		sim.WithControl(mh.Control(cfg.Sim.Control)),
	}
}

// DAQOptions returns the options of the acquisition session.
func (cfg Config) DAQOptions() []daq.Option {
	policy, _ := daq.ParsePolicy(cfg.DAQ.Policy)
	return []daq.Option{
		daq.WithPolicy(policy),
		daq.WithConsumers(cfg.DAQ.Consumers),
		daq.WithCPU(cfg.DAQ.CPU),
		daq.WithPoll(cfg.DAQ.Poll),
		daq.WithWarnings(cfg.DAQ.Warnings),
	}
}
