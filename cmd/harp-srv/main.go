// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command harp-srv starts a TDAQ server driving a MultiHarp acquisition.
//
// The /config command carries the YAML configuration of the acquisition.
// Acquisition statistics are published on the /stats output.
package main // import "github.com/go-lpc/harp/cmd/harp-srv"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
)

func main() {
	cmd := flags.New()

	srv := newServer(cmd.Args[0])
	srv.msg = log.New(os.Stdout, cmd.Args[0]+": ", 0)

	node := tdaq.New(cmd, os.Stdout)
	node.CmdHandle("/config", srv.OnConfig)
	node.CmdHandle("/init", srv.OnInit)
	node.CmdHandle("/reset", srv.OnReset)
	node.CmdHandle("/start", srv.OnStart)
	node.CmdHandle("/stop", srv.OnStop)
	node.CmdHandle("/quit", srv.OnQuit)

	node.OutputHandle("/stats", srv.stats)

	node.RunHandle(srv.run)

	err := node.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
