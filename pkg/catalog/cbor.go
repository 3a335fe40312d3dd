// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package catalog

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/sextant/pkg/duplex"
)

// STATS reply keys
const (
	StatFramesReceived = iota
	StatFramesSent
	StatDispatched
	StatRejected
	StatReplayed
	StatTagCollisions
	StatCRCErrors
	StatMalformed
	StatSends
	StatRetransmits
	StatCompleted
	StatTimeouts
	StatIOErrors
	StatUptimeMs
)

// EncodeMap encodes an integer-keyed map as CBOR
func EncodeMap(m map[int]interface{}) ([]byte, error) {
	data, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return data, nil
}

// EncodeStats encodes engine counters as a STATS reply
func EncodeStats(s duplex.Statistics) ([]byte, error) {
	return EncodeMap(map[int]interface{}{
		StatFramesReceived: s.FramesReceived,
		StatFramesSent:     s.FramesSent,
		StatDispatched:     s.Dispatched,
		StatRejected:       s.Rejected,
		StatReplayed:       s.Replayed,
		StatTagCollisions:  s.TagCollisions,
		StatCRCErrors:      s.CRCErrors,
		StatMalformed:      s.MalformedFrames,
		StatSends:          s.Sends,
		StatRetransmits:    s.Retransmits,
		StatCompleted:      s.Completed,
		StatTimeouts:       s.Timeouts,
		StatIOErrors:       s.IOErrors,
		StatUptimeMs:       uint64(s.LastUpdateTime.Sub(s.StartTime).Milliseconds()),
	})
}

// ParseMap decodes a CBOR map with integer keys. An empty payload yields a
// nil map.
func ParseMap(data []byte) (map[int]interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var raw interface{}
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}

	v, ok := raw.(map[interface{}]interface{})
	if !ok {
		return nil, fmt.Errorf("expected map, got %T", raw)
	}

	m := make(map[int]interface{}, len(v))
	for key, val := range v {
		switch k := key.(type) {
		case uint64:
			m[int(k)] = val
		case int64:
			m[int(k)] = val
		default:
			return nil, fmt.Errorf("expected integer map key, got %T", key)
		}
	}
	return m, nil
}

// GetMapUint extracts a uint64 from a CBOR map by key
func GetMapUint(m map[int]interface{}, key int) (uint64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case uint64:
		return val, true
	case int64:
		if val >= 0 {
			return uint64(val), true
		}
	}
	return 0, false
}

// GetMapString extracts a string from a CBOR map by key
func GetMapString(m map[int]interface{}, key int) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
