// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command harp-sim is an interactive console driving simulated MultiHarp
// devices.
//
// Example:
//
//	$> harp-sim
//	harp> open 0
//	harp> init t3
//	harp> start 1000
//	harp> read
//	harp> stop
//	harp> quit
package main // import "github.com/go-lpc/harp/cmd/harp-sim"

import (
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/go-lpc/harp/mh/sim"
)

func main() {
	seed := flag.Uint64("seed", 1234, "seed of the simulated devices")
	flag.Parse()

	log.SetPrefix("harp-sim: ")
	log.SetFlags(0)

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)
	term.SetCompleter(complete)

	con := newConsole(os.Stdout, sim.WithSeed(*seed))
	defer con.close()

	for {
		line, err := term.Prompt("harp> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				log.Printf("could not read command: %+v", err)
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		quit, err := con.exec(line)
		if err != nil {
			log.Printf("%+v", err)
		}
		if quit {
			return
		}
	}
}

func complete(line string) []string {
	var out []string
	for _, cmd := range commands {
		if strings.HasPrefix(cmd.name, line) {
			out = append(out, cmd.name)
		}
	}
	return out
}
