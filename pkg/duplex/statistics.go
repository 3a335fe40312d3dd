// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import (
	"fmt"
	"time"
)

// Statistics tracks engine counters and rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Inbound
	FramesReceived  uint64
	CRCErrors       uint64
	MalformedFrames uint64
	Dispatched      uint64
	Rejected        uint64
	Replayed        uint64
	TagCollisions   uint64
	StrayResponses  uint64

	// Outbound
	FramesSent  uint64
	Sends       uint64
	Retransmits uint64
	Completed   uint64
	Timeouts    uint64
	IOErrors    uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec received
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() Statistics {
	now := time.Now()
	return Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Errors returns the total number of error conditions counted
func (s *Statistics) Errors() uint64 {
	return s.CRCErrors + s.MalformedFrames + s.Timeouts + s.IOErrors
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.FramesReceived) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// touch records the time of the latest update
func (s *Statistics) touch() {
	s.LastUpdateTime = time.Now()
}

// String returns a formatted statistics summary
func (s Statistics) String() string {
	s.CalculateRates()
	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Frames In:       %8d\n", s.FramesReceived)
	result += fmt.Sprintf("Frames Out:      %8d\n", s.FramesSent)
	result += fmt.Sprintf("Dispatched:      %8d\n", s.Dispatched)

	if s.Replayed > 0 {
		result += fmt.Sprintf("Replayed:        %8d\n", s.Replayed)
	}
	if s.Rejected > 0 {
		result += fmt.Sprintf("Rejected:        %8d\n", s.Rejected)
	}
	if s.TagCollisions > 0 {
		result += fmt.Sprintf("Tag Collisions:  %8d\n", s.TagCollisions)
	}
	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", s.CRCErrors)
	}
	if s.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed:       %8d\n", s.MalformedFrames)
	}

	result += fmt.Sprintf("Sends:           %8d\n", s.Sends)
	if s.Sends > 0 {
		result += fmt.Sprintf("  Completed:        %5d\n", s.Completed)
		result += fmt.Sprintf("  Retransmits:      %5d\n", s.Retransmits)
		result += fmt.Sprintf("  Timeouts:         %5d\n", s.Timeouts)
	}
	if s.StrayResponses > 0 {
		result += fmt.Sprintf("Stray Responses: %8d\n", s.StrayResponses)
	}
	if s.IOErrors > 0 {
		result += fmt.Sprintf("IO Errors:       %8d\n", s.IOErrors)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = NewStatistics()
}
