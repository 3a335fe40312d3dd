// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

// EventKind identifies an engine transition reported to Config.Observer
type EventKind int

const (
	EventDispatched EventKind = iota // new request answered by the dispatcher
	EventRejected                    // dispatcher refused a new request
	EventReplayed                    // duplicate request answered from cache
	EventTagCollision                // cached tag with a different checksum, dropped
	EventCRCError
	EventMalformed
	EventSent       // request transmitted, send outstanding
	EventRetransmit // request retransmitted after timeout
	EventCompleted  // outstanding send finished, see Err
	EventStrayResponse
	EventIOError
)

// String returns the event kind name
func (k EventKind) String() string {
	switch k {
	case EventDispatched:
		return "DISPATCHED"
	case EventRejected:
		return "REJECTED"
	case EventReplayed:
		return "REPLAYED"
	case EventTagCollision:
		return "TAG_COLLISION"
	case EventCRCError:
		return "CRC_ERROR"
	case EventMalformed:
		return "MALFORMED"
	case EventSent:
		return "SENT"
	case EventRetransmit:
		return "RETRANSMIT"
	case EventCompleted:
		return "COMPLETED"
	case EventStrayResponse:
		return "STRAY_RESPONSE"
	case EventIOError:
		return "IO_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event describes one engine transition. Command and Tag are zero for frames
// that failed validation.
type Event struct {
	Kind    EventKind
	Command uint8
	Tag     uint8
	Attempt int
	Len     int // payload length, where one applies
	Err     error
}
