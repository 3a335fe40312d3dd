// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import (
	"fmt"
	"strings"
	"time"
)

// maxFormattedPayload limits hex dumps in formatted output
const maxFormattedPayload = 64

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f Frame, ts time.Time) string {
	kind := "REQ "
	if f.IsResponse() {
		kind = "RESP"
	}

	result := fmt.Sprintf("[%s] %s cmd=0x%02X tag=0x%02X flags=0x%02X len=%d crc=0x%08X\n",
		ts.Format("15:04:05.000"), kind, f.Command, f.Tag, f.Flags, len(f.Payload), f.CRC)
	if len(f.Payload) > 0 {
		result += "  payload: " + FormatHex(f.Payload, maxFormattedPayload) + "\n"
	}
	return result
}

// FormatHex renders up to limit bytes as space-separated hex.
// A limit of 0 or less prints everything.
func FormatHex(data []byte, limit int) string {
	truncated := false
	if limit > 0 && len(data) > limit {
		data = data[:limit]
		truncated = true
	}

	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	if truncated {
		sb.WriteString(" ...")
	}
	return sb.String()
}

// FormatEvent formats an engine event as a single line
func FormatEvent(ev Event) string {
	switch ev.Kind {
	case EventCRCError, EventMalformed:
		return fmt.Sprintf("%s len=%d: %v", ev.Kind, ev.Len, ev.Err)
	case EventSent, EventRetransmit:
		return fmt.Sprintf("%s cmd=0x%02X tag=0x%02X attempt=%d", ev.Kind, ev.Command, ev.Tag, ev.Attempt)
	case EventCompleted:
		if ev.Err != nil {
			return fmt.Sprintf("%s cmd=0x%02X tag=0x%02X attempts=%d: %v", ev.Kind, ev.Command, ev.Tag, ev.Attempt, ev.Err)
		}
		return fmt.Sprintf("%s cmd=0x%02X tag=0x%02X attempts=%d reply_len=%d", ev.Kind, ev.Command, ev.Tag, ev.Attempt, ev.Len)
	}

	line := fmt.Sprintf("%s cmd=0x%02X tag=0x%02X len=%d", ev.Kind, ev.Command, ev.Tag, ev.Len)
	if ev.Err != nil {
		line += fmt.Sprintf(": %v", ev.Err)
	}
	return line
}
