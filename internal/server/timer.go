package server

import (
	"time"
)

type timerState int

const (
	timerNotStarted timerState = iota
	timerCountdownPending
	timerRunning
	timerStopped
)

func (s timerState) String() string {
	switch s {
	case timerNotStarted:
		return "not_started"
	case timerCountdownPending:
		return "countdown_pending"
	case timerRunning:
		return "running"
	case timerStopped:
		return "stopped"
	}
	return "unknown"
}

// debateTimer is a room's countdown/running state machine. It is owned by the
// room goroutine: the countdown expiry fires a callback that must re-enter
// the room's loop instead of mutating timer state directly, so all
// transitions happen single-writer.
type debateTimer struct {
	state     timerState
	startedAt time.Time
	countdown *time.Timer
	now       func() time.Time
}

func newDebateTimer() debateTimer {
	return debateTimer{now: time.Now}
}

// startCountdown moves NotStarted to CountdownPending and schedules fire
// after delay. Any other state is left untouched so duplicate start requests
// cannot produce a second countdown. Stopped is terminal for the session.
func (t *debateTimer) startCountdown(delay time.Duration, fire func()) bool {
	if t.state != timerNotStarted {
		return false
	}

	t.state = timerCountdownPending
	t.countdown = time.AfterFunc(delay, fire)
	return true
}

// arm records the authoritative start instant once the countdown has
// elapsed. It reports false when the countdown was cancelled in the meantime.
func (t *debateTimer) arm() bool {
	if t.state != timerCountdownPending {
		return false
	}

	t.state = timerRunning
	t.startedAt = t.now()
	t.countdown = nil
	return true
}

func (t *debateTimer) running() bool {
	return t.state == timerRunning
}

// elapsedSeconds derives elapsed time from the recorded start instant. It is
// never accumulated by polling, so repeated reads are monotonic.
func (t *debateTimer) elapsedSeconds() int {
	if t.state != timerRunning {
		return 0
	}
	return int(t.now().Sub(t.startedAt) / time.Second)
}

// stop makes the timer Stopped from any state, cancelling a pending
// countdown. It reports the measured elapsed seconds and whether the timer
// had actually been running.
func (t *debateTimer) stop() (int, bool) {
	t.cancelCountdown()

	wasRunning := t.state == timerRunning
	var elapsed int
	if wasRunning {
		elapsed = t.elapsedSeconds()
	}

	t.state = timerStopped
	return elapsed, wasRunning
}

// cancelCountdown stops a scheduled countdown without transitioning state.
// Used on room teardown so a stale expiry cannot fire against a dead room.
func (t *debateTimer) cancelCountdown() {
	if t.countdown != nil {
		t.countdown.Stop()
		t.countdown = nil
	}
}
