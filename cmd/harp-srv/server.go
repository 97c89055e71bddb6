// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/go-daq/tdaq"

	"github.com/go-lpc/harp/daq"
	"github.com/go-lpc/harp/internal/config"
	"github.com/go-lpc/harp/mh"
	"github.com/go-lpc/harp/mh/sim"
)

type server struct {
	name string
	freq time.Duration // period of the published statistics
	msg  *log.Logger

	mu   sync.Mutex
	cfg  config.Config
	reg  *sim.Registry
	dev  mh.Device
	sess *daq.Session
	last daq.Report

	out chan []byte
}

func newServer(name string) *server {
	return &server{
		name: name,
		freq: 1 * time.Second,
		msg:  log.New(io.Discard, "", 0),
		cfg:  config.Default(),
		out:  make(chan []byte, 16),
	}
}

func (srv *server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	return srv.configure(req.Body)
}

func (srv *server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	err := srv.init()
	if err != nil {
		return err
	}
	ctx.Msg.Infof("device %s initialized (mode=%s)", srv.dev.Serial(), srv.cfg.Device.Mode)
	return nil
}

func (srv *server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return srv.reset()
}

func (srv *server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return srv.start()
}

func (srv *server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	rep, err := srv.stop()
	ctx.Msg.Debugf("received /stop command... -> events=%d", rep.Consumed.Events)
	if err != nil {
		return err
	}

	body, err := encodeReport(rep)
	if err != nil {
		return fmt.Errorf("could not encode report: %w", err)
	}
	resp.Body = body
	return nil
}

func (srv *server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return srv.quit()
}

func (srv *server) stats(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.out:
		dst.Body = data
	}
	return nil
}

func (srv *server) run(ctx tdaq.Context) error {
	tck := time.NewTicker(srv.freq)
	defer tck.Stop()

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case <-tck.C:
			body, ok, err := srv.publish()
			if err != nil {
				ctx.Msg.Errorf("could not publish statistics: %+v", err)
				continue
			}
			if !ok {
				continue
			}
			select {
			case srv.out <- body:
			default:
			}
		}
	}
}

// configure decodes the YAML configuration carried by body.
// An empty body resets the configuration to its defaults.
func (srv *server) configure(body []byte) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.sess != nil {
		return fmt.Errorf("could not configure %s: %w", srv.name, mh.ErrInstanceRunning)
	}

	txt := ""
	if len(body) > 0 {
		dec := tdaq.NewDecoder(bytes.NewReader(body))
		txt = dec.ReadStr()
		if err := dec.Err(); err != nil {
			return fmt.Errorf("could not decode /config payload: %w", err)
		}
	}

	cfg, err := config.Read(bytes.NewReader([]byte(txt)))
	if err != nil {
		return err
	}
	srv.cfg = cfg
	return nil
}

func (srv *server) init() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.sess != nil {
		return fmt.Errorf("could not initialize %s: %w", srv.name, mh.ErrInstanceRunning)
	}
	if srv.dev != nil {
		err := srv.close()
		if err != nil {
			return err
		}
	}

	dev, err := srv.open()
	if err != nil {
		return fmt.Errorf("could not open device: %w", err)
	}

	mode, err := srv.cfg.Device.TTTR()
	if err != nil {
		_ = dev.Close()
		return err
	}
	err = dev.Init(mode, mh.RefClock(srv.cfg.Device.Ref))
	if err != nil {
		_ = dev.Close()
		return fmt.Errorf("could not initialize device %s: %w", dev.Serial(), err)
	}
	srv.dev = dev
	return nil
}

func (srv *server) open() (mh.Device, error) {
	cfg := srv.cfg
	switch cfg.Device.Kind {
	case "sim":
		if srv.reg == nil {
			srv.reg = sim.NewRegistry(sim.WithLogger(srv.msg))
		}
		if cfg.Device.Serial != "" {
			return srv.reg.OpenBySerial(cfg.Device.Serial, cfg.SimOptions()...)
		}
		return srv.reg.Open(cfg.Device.Index, cfg.SimOptions()...)
	default:
		if cfg.Device.Serial != "" {
			return mh.OpenBySerial(cfg.Device.Serial)
		}
		return mh.Open(cfg.Device.Index)
	}
}

func (srv *server) reset() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.sess != nil {
		_, err := srv.sess.Stop()
		srv.sess = nil
		if err != nil {
			srv.msg.Printf("acquisition stopped on reset: %+v", err)
		}
	}
	srv.last = daq.Report{}
	return srv.close()
}

func (srv *server) start() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	switch {
	case srv.dev == nil:
		return fmt.Errorf("could not start acquisition: %w", mh.ErrNotInitialized)
	case srv.sess != nil:
		return fmt.Errorf("could not start acquisition: %w", mh.ErrInstanceRunning)
	}

	opts := append(srv.cfg.DAQOptions(), daq.WithLogger(srv.msg))
	sess, err := daq.Start(srv.dev, srv.cfg.DAQ.TAcq, opts...)
	if err != nil {
		return fmt.Errorf("could not start acquisition: %w", err)
	}
	srv.sess = sess
	return nil
}

func (srv *server) stop() (daq.Report, error) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.sess == nil {
		return srv.last, fmt.Errorf("could not stop acquisition: no running acquisition")
	}
	rep, err := srv.sess.Stop()
	srv.sess = nil
	srv.last = rep
	if err != nil {
		return rep, fmt.Errorf("could not stop acquisition: %w", err)
	}
	return rep, nil
}

func (srv *server) quit() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.sess != nil {
		_, err := srv.sess.Stop()
		srv.sess = nil
		if err != nil {
			srv.msg.Printf("acquisition stopped on quit: %+v", err)
		}
	}
	return srv.close()
}

func (srv *server) close() error {
	if srv.dev == nil {
		return nil
	}
	dev := srv.dev
	srv.dev = nil
	err := dev.Close()
	if err != nil {
		return fmt.Errorf("could not close device %s: %w", dev.Serial(), err)
	}
	return nil
}

// publish encodes the statistics of the running acquisition.
func (srv *server) publish() ([]byte, bool, error) {
	srv.mu.Lock()
	sess := srv.sess
	srv.mu.Unlock()

	if sess == nil {
		return nil, false, nil
	}
	body, err := encodeReport(sess.Stats())
	return body, err == nil, err
}

func encodeReport(rep daq.Report) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteU64(uint64(rep.Start.UnixNano()))
	enc.WriteU64(uint64(rep.Elapsed))
	enc.WriteU64(rep.Consumed.Events)
	enc.WriteU64(rep.Consumed.Photons)
	enc.WriteU64(rep.Consumed.Specials)
	enc.WriteU64(rep.Consumed.Overflows)
	enc.WriteU64(rep.Consumed.Markers)
	enc.WriteU64(rep.Loop.Reads)
	enc.WriteU64(rep.Loop.Records)
	enc.WriteU64(uint64(rep.Loop.MaxRead))
	enc.WriteU32(uint32(rep.Loop.Warnings))
	return buf.Bytes(), enc.Err()
}

func decodeReport(body []byte) (daq.Report, error) {
	var (
		rep daq.Report
		dec = tdaq.NewDecoder(bytes.NewReader(body))
	)
	rep.Start = time.Unix(0, int64(dec.ReadU64()))
	rep.Elapsed = time.Duration(dec.ReadU64())
	rep.Consumed.Events = dec.ReadU64()
	rep.Consumed.Photons = dec.ReadU64()
	rep.Consumed.Specials = dec.ReadU64()
	rep.Consumed.Overflows = dec.ReadU64()
	rep.Consumed.Markers = dec.ReadU64()
	rep.Loop.Reads = dec.ReadU64()
	rep.Loop.Records = dec.ReadU64()
	rep.Loop.MaxRead = time.Duration(dec.ReadU64())
	rep.Loop.Warnings = mh.Warning(dec.ReadU32())
	return rep, dec.Err()
}
