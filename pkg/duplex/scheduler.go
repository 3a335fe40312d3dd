// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import "time"

// Timer is a scheduled single-shot callback
type Timer interface {
	// Stop prevents the callback from running. It reports false when the
	// timer already fired or was stopped.
	Stop() bool
}

// Scheduler arms single-shot timers. The fire callback must run in the same
// serialized context as the other engine entry points.
type Scheduler interface {
	Schedule(d time.Duration, fire func()) Timer
}

// SchedulerFunc adapts a function to Scheduler
type SchedulerFunc func(d time.Duration, fire func()) Timer

// Schedule calls f(d, fire)
func (f SchedulerFunc) Schedule(d time.Duration, fire func()) Timer {
	return f(d, fire)
}
