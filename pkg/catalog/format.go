// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/sextant/pkg/duplex"
)

var statNames = []struct {
	key  int
	name string
}{
	{StatFramesReceived, "frames_in"},
	{StatFramesSent, "frames_out"},
	{StatDispatched, "dispatched"},
	{StatRejected, "rejected"},
	{StatReplayed, "replayed"},
	{StatTagCollisions, "tag_collisions"},
	{StatCRCErrors, "crc_errors"},
	{StatMalformed, "malformed"},
	{StatSends, "sends"},
	{StatRetransmits, "retransmits"},
	{StatCompleted, "completed"},
	{StatTimeouts, "timeouts"},
	{StatIOErrors, "io_errors"},
}

// FormatReply renders a reply payload for display. Built-in replies are
// decoded; anything else is shown as hex.
func (c *Catalog) FormatReply(cmd uint8, payload []byte) string {
	switch cmd {
	case CmdPing:
		m, err := ParseMap(payload)
		if err != nil {
			break
		}
		if uptime, ok := GetMapUint(m, 0); ok {
			return fmt.Sprintf("PING uptime=%s", FormatUptime(uptime))
		}

	case CmdEcho:
		return fmt.Sprintf("ECHO %d bytes: %s", len(payload), duplex.FormatHex(payload, 64))

	case CmdInfo:
		m, err := ParseMap(payload)
		if err != nil {
			break
		}
		name, _ := GetMapString(m, 0)
		version, _ := GetMapString(m, 1)
		maxPayload, _ := GetMapUint(m, 2)
		return fmt.Sprintf("INFO name=%q version=%s max_payload=%d", name, version, maxPayload)

	case CmdStats:
		m, err := ParseMap(payload)
		if err != nil {
			break
		}
		var sb strings.Builder
		sb.WriteString("STATS")
		for _, s := range statNames {
			if v, ok := GetMapUint(m, s.key); ok {
				fmt.Fprintf(&sb, " %s=%d", s.name, v)
			}
		}
		if up, ok := GetMapUint(m, StatUptimeMs); ok {
			fmt.Fprintf(&sb, " uptime=%s", FormatUptime(up))
		}
		return sb.String()
	}

	return fmt.Sprintf("%s %d bytes: %s", c.Name(cmd), len(payload), duplex.FormatHex(payload, 64))
}

// FormatUptime formats milliseconds as a human-readable duration
func FormatUptime(ms uint64) string {
	d := time.Duration(ms) * time.Millisecond
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
