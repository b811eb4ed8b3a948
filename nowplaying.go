package main

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// ============================================================================
// Now Playing State
// ============================================================================

type PlayState int

const (
	StateLoading PlayState = iota
	StatePlaying
	StatePaused
	StateFinished
	StateSkipped
	StateError
)

func (s PlayState) String() string {
	switch s {
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateFinished:
		return "Finished"
	case StateSkipped:
		return "Skipped"
	case StateError:
		return "Error"
	}
	return "Unknown"
}

// Terminal reports whether the play instance has ended. Terminal states only
// change through an explicit override (replay) or a raced device error.
func (s PlayState) Terminal() bool {
	return s == StateFinished || s == StateSkipped || s == StateError
}

type playEvent int

const (
	eventStarted playEvent = iota
	eventPause
	eventResume
	eventFinish
	eventSkip
	eventError
	eventOverride
)

// transition is the pure state machine step. It returns the next state and
// whether the event was accepted; rejected events leave the state untouched.
//
// A device error is accepted even from Finished/Skipped so a raced error
// report is never lost. An override resets the instance from any state.
func transition(cur PlayState, ev playEvent) (PlayState, bool) {
	switch ev {
	case eventOverride:
		return StateLoading, true
	case eventError:
		return StateError, true
	}

	if cur.Terminal() {
		return cur, false
	}

	switch ev {
	case eventStarted:
		if cur == StateLoading {
			return StatePlaying, true
		}
	case eventPause:
		if cur == StatePlaying || cur == StatePaused {
			return StatePaused, true
		}
	case eventResume:
		if cur == StatePaused || cur == StatePlaying {
			return StatePlaying, true
		}
	case eventFinish:
		return StateFinished, true
	case eventSkip:
		return StateSkipped, true
	}
	return cur, false
}

// MessageRef locates the player message. The zero value means "no message";
// every renderer must tolerate that.
type MessageRef struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

func (r MessageRef) Valid() bool {
	return r.ChannelID != 0 && r.MessageID != 0
}

// NowPlaying holds the lifecycle of the single active (or just-ended) track.
// It is owned exclusively by the PlayerSession; handlers never touch it
// directly.
type NowPlaying struct {
	Item    QueueItem
	State   PlayState
	Message MessageRef
	Err     error

	// AutoAdvance is cleared by force-play so the old track's idle callback
	// does not race the forced track for the device.
	AutoAdvance bool

	startedAt time.Time
	pausedAt  time.Time
	paused    time.Duration
}

func NewNowPlaying(item QueueItem) *NowPlaying {
	return &NowPlaying{
		Item:        item,
		State:       StateLoading,
		AutoAdvance: true,
	}
}

// Apply runs one transition and maintains the elapsed-time bookkeeping.
func (np *NowPlaying) Apply(ev playEvent) bool {
	next, ok := transition(np.State, ev)
	if !ok {
		return false
	}
	prev := np.State
	np.State = next

	now := time.Now()
	switch {
	case prev == StateLoading && next == StatePlaying:
		np.startedAt = now
	case prev == StatePlaying && next == StatePaused:
		np.pausedAt = now
	case prev == StatePaused && next == StatePlaying:
		np.paused += now.Sub(np.pausedAt)
		np.pausedAt = time.Time{}
	case next == StateLoading:
		// Override: fresh play instance for the same track.
		np.startedAt = time.Time{}
		np.pausedAt = time.Time{}
		np.paused = 0
		np.Err = nil
		np.AutoAdvance = true
	}
	return true
}

// Elapsed returns playback time excluding paused stretches.
func (np *NowPlaying) Elapsed() time.Duration {
	if np.startedAt.IsZero() {
		return 0
	}
	end := time.Now()
	if !np.pausedAt.IsZero() {
		end = np.pausedAt
	}
	return end.Sub(np.startedAt) - np.paused
}
