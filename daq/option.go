// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"log"
	"os"
	"time"
)

type config struct {
	msg *log.Logger

	policy    Policy
	poll      time.Duration // polling period of shared-buffer consumers
	consumers int
	proc      Processor

	cpu      int           // CPU the acquisition thread is pinned to, -1 for none
	warnings time.Duration // period of device warnings checks
	timeout  time.Duration // maximal time to join the session goroutines
}

func newConfig() config {
	return config{
		msg:       log.New(os.Stdout, "daq: ", 0),
		policy:    MessagePolicy,
		poll:      1 * time.Millisecond,
		consumers: 1,
		cpu:       -1,
		warnings:  1 * time.Second,
		timeout:   10 * time.Second,
	}
}

// Option configures acquisition loops, consumers and sessions.
type Option func(*config)

// WithLogger sets the logger.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithPolicy sets the hand-off policy of a session.
func WithPolicy(p Policy) Option {
	return func(cfg *config) {
		cfg.policy = p
	}
}

// WithPoll sets the polling period of shared-buffer consumers.
func WithPoll(d time.Duration) Option {
	return func(cfg *config) {
		cfg.poll = d
	}
}

// WithConsumers sets the number of consumers of a session.
// Batches are only guaranteed to be processed in order with a single
// consumer.
func WithConsumers(n int) Option {
	return func(cfg *config) {
		cfg.consumers = n
	}
}

// WithProcessor sets the processor applied to each batch by the
// consumers of a session.
func WithProcessor(proc Processor) Option {
	return func(cfg *config) {
		cfg.proc = proc
	}
}

// WithCPU pins the acquisition thread of a session to the provided CPU.
func WithCPU(cpu int) Option {
	return func(cfg *config) {
		cfg.cpu = cpu
	}
}

// WithWarnings sets the period of device warnings checks.
// A zero period disables the checks during acquisition.
func WithWarnings(d time.Duration) Option {
	return func(cfg *config) {
		cfg.warnings = d
	}
}

// WithTimeout sets the maximal time to join the goroutines of a session.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.timeout = d
	}
}
