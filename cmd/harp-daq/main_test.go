// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-lpc/harp/internal/config"
	"github.com/go-lpc/harp/mh"
)

func TestRun(t *testing.T) {
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	for _, tc := range []struct {
		name string
		cfg  func(cfg *config.Config)
		stop bool
	}{
		{
			name: "t3",
			cfg: func(cfg *config.Config) {
				cfg.DAQ.TAcq = 100
			},
		},
		{
			name: "t2-rwmutex",
			cfg: func(cfg *config.Config) {
				cfg.Device.Mode = "t2"
				cfg.DAQ.TAcq = 100
				cfg.DAQ.Policy = "rwmutex"
				cfg.DAQ.Consumers = 2
			},
		},
		{
			name: "serial",
			cfg: func(cfg *config.Config) {
				cfg.Device.Serial = "1044274"
				cfg.DAQ.TAcq = 50
			},
		},
		{
			name: "unbounded-stop",
			cfg: func(cfg *config.Config) {
				cfg.Sim.Control = int(mh.SwStartSwStop)
			},
			stop: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.cfg(&cfg)

			stop := make(chan os.Signal, 1)
			if tc.stop {
				go func() {
					time.Sleep(100 * time.Millisecond)
					stop <- os.Interrupt
				}()
			}

			err := run(cfg, 20*time.Millisecond, stop)
			if err != nil {
				t.Fatalf("could not run: %+v", err)
			}
		})
	}
}
