// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks packet statistics and error rates on the receiving side
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets    uint64
	ValidPackets    uint64
	ChecksumErrors  uint64
	DecodeErrors    uint64
	AnomalousValues uint64
	EvictedBytes    uint64
	PerKind         map[Kind]uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		PerKind:        make(map[Kind]uint64),
	}
}

// Update updates statistics based on a packet and its errors. p may be nil
// when decodeErr is set.
func (s *Statistics) Update(p Packet, decodeErr error, validationErrors []ValidationError) {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrChecksum) {
			s.ChecksumErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	s.PerKind[p.Kind()]++

	if len(validationErrors) > 0 {
		s.AnomalousValues++
	} else {
		s.ValidPackets++
	}
}

// AddEvicted counts bytes the decoder dropped on overflow
func (s *Statistics) AddEvicted(n int) {
	s.EvictedBytes += uint64(n)
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		errorCount := s.ChecksumErrors + s.DecodeErrors + s.AnomalousValues
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, checksumPercent, anomalousPercent float64
	if s.TotalPackets > 0 {
		validPercent = float64(s.ValidPackets) * 100.0 / float64(s.TotalPackets)
		checksumPercent = float64(s.ChecksumErrors) * 100.0 / float64(s.TotalPackets)
		anomalousPercent = float64(s.AnomalousValues) * 100.0 / float64(s.TotalPackets)
	}

	result := fmt.Sprintf("=== Statistics (%s) ===\n", FormatUptime(time.Since(s.StartTime)))
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, validPercent)

	for _, spec := range catalog {
		if n := s.PerKind[spec.Kind]; n > 0 {
			result += fmt.Sprintf("  %-10s     %8d\n", spec.Name+":", n)
		}
	}

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, checksumPercent)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", s.AnomalousValues, anomalousPercent)
	}
	if s.EvictedBytes > 0 {
		result += fmt.Sprintf("Evicted Bytes:   %8d\n", s.EvictedBytes)
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
