// Package alarm is wakebell's scheduling engine.
//
// # Overview
//
// The engine computes the next qualifying alarm instant from a recurrence
// rule (every day, or every other day counted from a reference date), arms a
// one-shot countdown for it, and re-arms itself after each firing or
// reconfiguration. Firings, next-time changes and host resumes are reported
// through the Callbacks set supplied at Init.
//
// # Recurrence
//
// A date qualifies as a work day when the whole-day difference between it
// and the normalized start date is even; under daily recurrence every date
// qualifies. An alarm instant exactly equal to the reference instant counts
// as already passed, so the engine never fires "now" on a momentary
// coincidence.
//
// # Timers
//
// At most one countdown is live at any time. Every recomputation cancels the
// previous timer before arming the next; a generation counter makes the
// cancellation effective even when it races arbitrarily close to the fire.
//
// # Wake recovery
//
// Countdowns drift while the host is suspended. The engine subscribes to a
// WakeSource and recomputes the next alarm against the current instant on
// every resume, so the armed countdown is never stale relative to the wall
// clock.
package alarm
