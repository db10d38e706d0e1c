package schedule

import (
	"fmt"
	"time"
)

type triggerKind int

const (
	triggerDaily triggerKind = iota
	triggerOnDemand
)

// Trigger describes when a task fires: once a day at a time of day, or
// only when invoked explicitly.
type Trigger struct {
	kind   triggerKind
	hour   int
	minute int
}

// DailyAt fires once per calendar day when the wall clock reaches
// hour:minute.
func DailyAt(hour, minute int) Trigger {
	return Trigger{kind: triggerDaily, hour: hour, minute: minute}
}

// OnDemand never fires from the loop; the task runs only via RunTaskNow.
func OnDemand() Trigger {
	return Trigger{kind: triggerOnDemand}
}

func (t Trigger) String() string {
	if t.kind == triggerOnDemand {
		return "on-demand"
	}
	return fmt.Sprintf("daily %02d:%02d", t.hour, t.minute)
}

// shouldRun reports whether the trigger matches the current minute and the
// task has not already been attempted today. lastRun is stamped on every
// attempt, so a failing task still waits for the next day.
func (t Trigger) shouldRun(now, lastRun time.Time) bool {
	if t.kind != triggerDaily {
		return false
	}
	if now.Hour() != t.hour || now.Minute() != t.minute {
		return false
	}
	if lastRun.IsZero() {
		return true
	}
	return !sameDay(now, lastRun)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
