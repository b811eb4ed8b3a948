package main

import (
	"testing"
	"time"
)

func TestTransitionLifecycle(t *testing.T) {
	tests := []struct {
		name   string
		from   PlayState
		ev     playEvent
		want   PlayState
		wantOK bool
	}{
		{"loading starts", StateLoading, eventStarted, StatePlaying, true},
		{"playing pauses", StatePlaying, eventPause, StatePaused, true},
		{"paused resumes", StatePaused, eventResume, StatePlaying, true},
		{"pause while paused is accepted", StatePaused, eventPause, StatePaused, true},
		{"resume while playing is accepted", StatePlaying, eventResume, StatePlaying, true},
		{"playing finishes", StatePlaying, eventFinish, StateFinished, true},
		{"playing skips", StatePlaying, eventSkip, StateSkipped, true},
		{"paused skips", StatePaused, eventSkip, StateSkipped, true},
		{"loading can be skipped", StateLoading, eventSkip, StateSkipped, true},
		{"loading can finish", StateLoading, eventFinish, StateFinished, true},
		{"started while playing rejected", StatePlaying, eventStarted, StatePlaying, false},
		{"pause while loading rejected", StateLoading, eventPause, StateLoading, false},
		{"resume while loading rejected", StateLoading, eventResume, StateLoading, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := transition(tt.from, tt.ev)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("transition(%v, %d) = %v, %v; want %v, %v", tt.from, tt.ev, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTransitionTerminalImmutability(t *testing.T) {
	terminals := []PlayState{StateFinished, StateSkipped, StateError}
	mutators := []playEvent{eventStarted, eventPause, eventResume, eventFinish, eventSkip}

	for _, from := range terminals {
		for _, ev := range mutators {
			got, ok := transition(from, ev)
			if ok || got != from {
				t.Errorf("transition(%v, %d) = %v, %v; terminal states must reject", from, ev, got, ok)
			}
		}
	}
}

func TestTransitionErrorBeatsTerminal(t *testing.T) {
	for _, from := range []PlayState{StateFinished, StateSkipped, StatePlaying, StateLoading} {
		got, ok := transition(from, eventError)
		if !ok || got != StateError {
			t.Errorf("transition(%v, eventError) = %v, %v; raced device errors must land", from, got, ok)
		}
	}
}

func TestTransitionOverrideResets(t *testing.T) {
	for _, from := range []PlayState{StateLoading, StatePlaying, StatePaused, StateFinished, StateSkipped, StateError} {
		got, ok := transition(from, eventOverride)
		if !ok || got != StateLoading {
			t.Errorf("transition(%v, eventOverride) = %v, %v; want Loading, true", from, got, ok)
		}
	}
}

func TestNowPlayingSkipThenFinish(t *testing.T) {
	np := NewNowPlaying(makeItems("a")[0])
	np.Apply(eventStarted)
	if !np.Apply(eventSkip) {
		t.Fatal("skip rejected")
	}
	// The device idle callback reports a normal finish after the skip was
	// recorded; the skip must win.
	if np.Apply(eventFinish) {
		t.Fatal("finish accepted after skip")
	}
	if np.State != StateSkipped {
		t.Fatalf("state = %v, want Skipped", np.State)
	}
}

func TestNowPlayingOverrideResetsBookkeeping(t *testing.T) {
	np := NewNowPlaying(makeItems("a")[0])
	np.Apply(eventStarted)
	np.Apply(eventError)
	np.Err = ErrDeviceFault
	np.AutoAdvance = false

	if !np.Apply(eventOverride) {
		t.Fatal("override rejected")
	}
	if np.State != StateLoading {
		t.Fatalf("state = %v, want Loading", np.State)
	}
	if np.Err != nil {
		t.Fatalf("error survived override: %v", np.Err)
	}
	if !np.AutoAdvance {
		t.Fatal("AutoAdvance not restored by override")
	}
	if np.Elapsed() != 0 {
		t.Fatalf("elapsed survived override: %v", np.Elapsed())
	}
}

func TestNowPlayingElapsedExcludesPause(t *testing.T) {
	np := NewNowPlaying(makeItems("a")[0])
	if np.Elapsed() != 0 {
		t.Fatalf("loading elapsed = %v, want 0", np.Elapsed())
	}

	np.Apply(eventStarted)
	np.startedAt = time.Now().Add(-10 * time.Second)

	got := np.Elapsed()
	if got < 9*time.Second || got > 11*time.Second {
		t.Fatalf("elapsed = %v, want ~10s", got)
	}

	np.Apply(eventPause)
	np.pausedAt = time.Now().Add(-4 * time.Second)
	got = np.Elapsed()
	if got < 5*time.Second || got > 7*time.Second {
		t.Fatalf("paused elapsed = %v, want ~6s", got)
	}

	np.Apply(eventResume)
	got = np.Elapsed()
	if got < 5*time.Second || got > 7*time.Second {
		t.Fatalf("resumed elapsed = %v, want ~6s", got)
	}
}

func TestMessageRefValid(t *testing.T) {
	if (MessageRef{}).Valid() {
		t.Fatal("zero ref reported valid")
	}
	if (MessageRef{ChannelID: 1}).Valid() {
		t.Fatal("half-zero ref reported valid")
	}
	if !(MessageRef{ChannelID: 1, MessageID: 2}).Valid() {
		t.Fatal("complete ref reported invalid")
	}
}
