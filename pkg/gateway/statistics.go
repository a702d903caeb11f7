// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"fmt"
	"time"

	"github.com/ctr/ramses-rf/pkg/protocol"
	"github.com/ctr/ramses-rf/pkg/ramses"
)

// Statistics tracks frame and command counters ([ADDED], in the same shape
// as pkg/helios_protocol.Statistics), exposed via String() for the cmd
// status command.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	FramesSeen     uint64
	FramesEcho     uint64
	FramesRejected uint64
	RejectedByKind map[ramses.ErrorKind]uint64

	CommandsSent    uint64
	CommandsRetried uint64
	CommandsFailed  map[protocol.ErrorKind]uint64

	PacketRate float64
}

// NewStatistics returns a zeroed Statistics tracker.
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		RejectedByKind: map[ramses.ErrorKind]uint64{},
		CommandsFailed: map[protocol.ErrorKind]uint64{},
	}
}

// ObserveFrame records a successfully parsed frame.
func (s *Statistics) ObserveFrame(f *ramses.Frame) {
	s.FramesSeen++
	if f.IsEcho() {
		s.FramesEcho++
	}
	s.touch()
}

// ObserveRejection records a frame that failed to parse.
func (s *Statistics) ObserveRejection(err error) {
	s.FramesRejected++
	if ferr, ok := err.(*ramses.FrameError); ok {
		s.RejectedByKind[ferr.Kind]++
	}
	s.touch()
}

// ObserveSend records a command dispatch, and whether it was a retry.
func (s *Statistics) ObserveSend(isRetry bool) {
	s.CommandsSent++
	if isRetry {
		s.CommandsRetried++
	}
	s.touch()
}

// ObserveSendFailure records a terminal command failure by protocol error
// kind.
func (s *Statistics) ObserveSendFailure(err error) {
	if perr, ok := err.(*protocol.Error); ok {
		s.CommandsFailed[perr.Kind]++
	}
	s.touch()
}

func (s *Statistics) touch() {
	now := time.Now()
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.FramesSeen) / elapsed
	}
	s.LastUpdateTime = now
}

// String renders a one-line human-readable summary.
func (s *Statistics) String() string {
	return fmt.Sprintf(
		"frames=%d (echo=%d rejected=%d) sent=%d (retried=%d failed=%d) rate=%.1f/s uptime=%s",
		s.FramesSeen, s.FramesEcho, s.FramesRejected,
		s.CommandsSent, s.CommandsRetried, sumUint64(s.CommandsFailed),
		s.PacketRate, time.Since(s.StartTime).Round(time.Second),
	)
}

func sumUint64[K comparable](m map[K]uint64) uint64 {
	var total uint64
	for _, v := range m {
		total += v
	}
	return total
}
