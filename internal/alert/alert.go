// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package alert sends mail alerts when an acquisition fails.
package alert // import "github.com/go-lpc/harp/internal/alert"

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	mail "gopkg.in/gomail.v2"

	"github.com/go-lpc/harp/daq"
	"github.com/go-lpc/harp/internal/config"
)

// Mailer sends alerts through a SMTP server.
type Mailer struct {
	cfg  config.Alert
	send func(msg ...*mail.Message) error
}

// New creates a mailer from the provided configuration.
func New(cfg config.Alert) (*Mailer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("alert: missing SMTP server or recipients")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}

	dial := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	dial.TLSConfig = &tls.Config{
		ServerName: cfg.Host,
	}
	return &Mailer{cfg: cfg, send: dial.DialAndSend}, nil
}

// Message builds the alert describing a failed acquisition on the
// named device.
func (m *Mailer) Message(device string, rep daq.Report, err error) *mail.Message {
	msg := mail.NewMessage(mail.SetEncoding(mail.Unencoded))
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("Bcc", m.cfg.To...)
	msg.SetHeader("Subject", fmt.Sprintf("[harp] acquisition failure on device %s", device))

	o := new(strings.Builder)
	fmt.Fprintf(o, "device:   %s\n", device)
	fmt.Fprintf(o, "error:    %+v\n", err)
	fmt.Fprintf(o, "start:    %s\n", rep.Start.UTC().Format(time.RFC3339))
	fmt.Fprintf(o, "elapsed:  %v\n", rep.Elapsed)
	fmt.Fprintf(o, "events:   %d\n", rep.Consumed.Events)
	fmt.Fprintf(o, "photons:  %d\n", rep.Consumed.Photons)
	fmt.Fprintf(o, "reads:    %d (empty=%d)\n", rep.Loop.Reads, rep.Loop.Empty)
	fmt.Fprintf(o, "warnings: %v\n", rep.Loop.Warnings)
	msg.SetBody("text/plain", o.String())
	return msg
}

// Send sends the alert describing a failed acquisition.
func (m *Mailer) Send(device string, rep daq.Report, err error) error {
	e := m.send(m.Message(device, rep, err))
	if e != nil {
		return fmt.Errorf("alert: could not send mail alert: %w", e)
	}
	return nil
}
